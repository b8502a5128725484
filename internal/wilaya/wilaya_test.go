package wilaya

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryIsComplete(t *testing.T) {
	for id := MinID; id <= MaxID; id++ {
		e, ok := GetByID(id)
		require.True(t, ok, "missing wilaya %d", id)
		assert.Equal(t, id, e.ID)
		assert.NotEmpty(t, e.Name)
		assert.NotEmpty(t, e.NameAr)

		require.Len(t, e.Code, 2, "code must be two digits: %q", e.Code)
		n, err := strconv.Atoi(e.Code)
		require.NoError(t, err)
		assert.Equal(t, id, n)

		// Every entry carries its canonical name as an alias.
		found := false
		for _, alias := range e.Aliases {
			if alias == e.Name {
				found = true
				break
			}
		}
		assert.True(t, found, "canonical name %q not in aliases", e.Name)
	}
}

func TestGetByName(t *testing.T) {
	tests := []struct {
		name   string
		wantID int
	}{
		{"Alger", 16},
		{"Algiers", 16},
		{"algiers", 16},
		{"  ALGIERS ", 16},
		{"الجزائر", 16},
		{"Oran", 31},
		{"Wahran", 31},
		{"Béjaïa", 6},
		{"Bejaia", 6},
		{"Bougie", 6},
		{"El Asnam", 2},
		{"Philippeville", 21},
		{"setif", 19},
	}

	for _, tt := range tests {
		id, entry, ok := GetByName(tt.name)
		require.True(t, ok, "expected match for %q", tt.name)
		assert.Equal(t, tt.wantID, id)
		assert.Equal(t, tt.wantID, entry.ID)
	}
}

func TestGetByNameUnknown(t *testing.T) {
	_, _, ok := GetByName("Casablanca")
	assert.False(t, ok)

	_, _, ok = GetByName("")
	assert.False(t, ok)
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid(0))
	assert.False(t, IsValid(-3))
	assert.False(t, IsValid(59))
	assert.True(t, IsValid(1))
	assert.True(t, IsValid(58))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "Alger", Name(16))
	assert.Equal(t, "الجزائر", NameArabic(16))
	assert.Equal(t, "", Name(99))
	assert.Equal(t, "", NameArabic(99))
}

func TestListOrderedAndImmutable(t *testing.T) {
	list := List()
	require.Len(t, list, 58)
	for i, e := range list {
		assert.Equal(t, i+1, e.ID)
	}

	// Mutating the returned slice must not leak into the directory.
	list[0].Name = "mutated"
	e, _ := GetByID(1)
	assert.Equal(t, "Adrar", e.Name)
}
