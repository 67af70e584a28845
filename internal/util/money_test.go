package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "50.00", FormatAmount(5000))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "-12.34", FormatAmount(-1234))
	assert.Equal(t, "1000000.01", FormatAmount(100000001))
}

func TestNewIDIsSortableAndUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
