package yalidine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhone(t *testing.T) {
	valid := []string{
		"0551234567", // Mobilis
		"0661234567", // Mobilis
		"0771234567", // Djezzy
		"021123456",  // Algiers landline
		"031123456",  // Constantine landline
		"041123456",  // Oran landline
		"055 123 45 67",
		"055-123-45-67",
	}
	for _, phone := range valid {
		assert.NoError(t, ValidatePhone(phone), "expected %q to validate", phone)
	}

	invalid := []string{
		"123456",
		"",
		"0851234567",  // no 08 mobile prefix
		"055123456",   // mobile too short
		"05512345678", // mobile too long
		"0211234567",  // landline too long
		"+21355123456",
		"abcdefghij",
	}
	for _, phone := range invalid {
		assert.ErrorIs(t, ValidatePhone(phone), ErrInvalidPhone, "expected %q to be rejected", phone)
	}
}
