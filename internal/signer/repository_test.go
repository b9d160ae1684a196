package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintShareToken_HashIsSHA256OfRaw(t *testing.T) {
	raw, hash, err := MintShareToken()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	sum := sha256.Sum256([]byte(raw))
	assert.Equal(t, hex.EncodeToString(sum[:]), hash)
}

func TestMintShareToken_IsUnpredictableAcrossCalls(t *testing.T) {
	raw1, hash1, err := MintShareToken()
	require.NoError(t, err)
	raw2, hash2, err := MintShareToken()
	require.NoError(t, err)

	assert.NotEqual(t, raw1, raw2)
	assert.NotEqual(t, hash1, hash2)
}
