package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveMasterKey(password, salt)
	key2 := DeriveMasterKey(password, salt)

	require.Len(t, key1, 32)
	assert.True(t, bytes.Equal(key1, key2))
}

func TestDeriveMasterKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveMasterKey(password, []byte("salt-1"))
	key2 := DeriveMasterKey(password, []byte("salt-2"))

	assert.False(t, bytes.Equal(key1, key2))
}

func TestVerifierFor_MatchesManualPipeline(t *testing.T) {
	password := []byte("pw")
	salt := []byte("salt")

	want := MakeVerifier(DeriveMasterKey(password, salt))
	got := VerifierFor(password, salt)

	require.Len(t, got, 32)
	assert.True(t, EqualVerifiers(want, got))
	assert.False(t, EqualVerifiers(want, MakeVerifier([]byte("other"))))
}
