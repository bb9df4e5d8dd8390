package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	t.Run("has expected length", func(t *testing.T) {
		assert.Len(t, Generate(), Length)
	})

	t.Run("contains only hex characters", func(t *testing.T) {
		assert.Regexp(t, "^[0-9a-f]+$", Generate())
	})

	t.Run("generates unique values", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 1000 {
			id := Generate()
			assert.False(t, seen[id], "duplicate ID generated: %s", id)
			seen[id] = true
		}
	})
}
