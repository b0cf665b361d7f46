package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePostcode(t *testing.T) {
	assert.Equal(t, "SW1A1AA", NormalizePostcode(" sw1a1aa "))
	assert.Equal(t, "M1 1AE", NormalizePostcode("m1 1ae"))
	// Fullwidth characters fold to ASCII.
	assert.Equal(t, "SW1A1AA", NormalizePostcode("ＳＷ１Ａ１ＡＡ"))
}

func TestIsUKPostcode(t *testing.T) {
	valid := []string{"SW1A1AA", "sw1a 1aa", "M1 1AE", "B33 8TH", "CR2 6XH", "DN55 1PT"}
	for _, p := range valid {
		assert.True(t, IsUKPostcode(p), p)
	}

	invalid := []string{"", "12345", "SW1A", "SW1A  1AA", "ZZZ 999"}
	for _, p := range invalid {
		assert.False(t, IsUKPostcode(p), p)
	}
}
