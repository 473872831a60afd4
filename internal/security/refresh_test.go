package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshSecret(t *testing.T) {
	a, err := NewRefreshSecret()
	require.NoError(t, err)
	b, err := NewRefreshSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
}

func TestHashRefresh(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashRefresh("abc"))
	assert.Len(t, HashRefresh("anything"), 64)
}
