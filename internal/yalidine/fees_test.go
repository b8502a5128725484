package yalidine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBillableWeight(t *testing.T) {
	// 10x10x10 cm at 0.0002 gives 2kg volumetric, above the 1kg actual.
	assert.Equal(t, 2.0, BillableWeight(1, 10, 10, 10))

	// Heavy but small: actual wins.
	assert.Equal(t, 5.0, BillableWeight(5, 10, 10, 10))

	assert.Equal(t, 0.0, BillableWeight(0, 0, 0, 0))

	// 50x40x30 = 60000 cm3 -> 12kg volumetric.
	assert.InDelta(t, 12.0, BillableWeight(3, 50, 40, 30), 1e-9)
}
