package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_RoundTrip(t *testing.T) {
	box, err := NewBox("server-secret")
	require.NoError(t, err)

	sealed, err := box.Seal("app-password-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "app-password-123")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "app-password-123", plain)
}

func TestBox_NonceIsRandom(t *testing.T) {
	box, err := NewBox("k")
	require.NoError(t, err)
	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	assert.NotEqual(t, a, b)
}

func TestBox_WrongKey(t *testing.T) {
	a, _ := NewBox("one")
	b, _ := NewBox("two")
	sealed, err := a.Seal("pw")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestBox_Malformed(t *testing.T) {
	box, _ := NewBox("k")
	_, err := box.Open("not base64!!")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = box.Open("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewBox_EmptyKey(t *testing.T) {
	_, err := NewBox("")
	assert.ErrorIs(t, err, ErrEmptyKey)
}
