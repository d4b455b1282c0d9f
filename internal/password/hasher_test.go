package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	h := NewHasher(4)

	hash, err := h.Hash("hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, h.Compare(hash, "hunter2"))
	assert.Error(t, h.Compare(hash, "wrong"))
}

func TestHashesAreSalted(t *testing.T) {
	h := NewHasher(4)

	a, err := h.Hash("hunter2")
	require.NoError(t, err)
	b, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
