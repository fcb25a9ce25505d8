package primitives

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestECDHRoundTrip(t *testing.T) {
	aPriv, err := GenerateKeyPair()
	require.NoError(t, err)
	bPriv, err := GenerateKeyPair()
	require.NoError(t, err)

	secretA, err := ECDH(aPriv, bPriv.PublicKey())
	require.NoError(t, err)
	secretB, err := ECDH(bPriv, aPriv.PublicKey())
	require.NoError(t, err)

	require.Equal(t, secretA, secretB)
}

func TestExportImportRaw(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	raw := ExportRaw(priv.PublicKey())
	pub, err := ImportRaw(raw)
	require.NoError(t, err)
	require.Equal(t, priv.PublicKey().Bytes(), pub.Bytes())
}

func TestImportRawRejectsGarbage(t *testing.T) {
	_, err := ImportRaw([]byte("not a point"))
	require.ErrorIs(t, err, ErrCryptoFailure)
}

func TestHKDFExpandDeterministic(t *testing.T) {
	ikm := []byte("shared-secret")
	salt := []byte("salt")

	k1, err := HKDFExpand(ikm, salt, []byte("soft-enclave/aead"), 32)
	require.NoError(t, err)
	k2, err := HKDFExpand(ikm, salt, []byte("soft-enclave/aead"), 32)
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	k3, err := HKDFExpand(ikm, salt, []byte("soft-enclave/iv"), 12)
	require.NoError(t, err)
	require.NotEqual(t, k1[:12], k3)
}

func TestAEADRoundTrip(t *testing.T) {
	key, err := SecureRandom(KeySize)
	require.NoError(t, err)
	aead, err := NewAEAD(key)
	require.NoError(t, err)

	nonce, err := SecureRandom(NonceSize)
	require.NoError(t, err)

	ct, err := aead.Seal(nonce, []byte("hello"), []byte("aad"))
	require.NoError(t, err)

	pt, err := aead.Open(nonce, ct, []byte("aad"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)
}

func TestAEADWrongKeyFails(t *testing.T) {
	key1, _ := SecureRandom(KeySize)
	key2, _ := SecureRandom(KeySize)
	aead1, _ := NewAEAD(key1)
	aead2, _ := NewAEAD(key2)

	nonce, _ := SecureRandom(NonceSize)
	ct, err := aead1.Seal(nonce, []byte("hello"), []byte("aad"))
	require.NoError(t, err)

	_, err = aead2.Open(nonce, ct, []byte("aad"))
	require.ErrorIs(t, err, ErrCryptoFailure)
}

func TestAEADWrongAADFails(t *testing.T) {
	key, _ := SecureRandom(KeySize)
	aead, _ := NewAEAD(key)
	nonce, _ := SecureRandom(NonceSize)

	ct, err := aead.Seal(nonce, []byte("hello"), []byte("op=evaluate"))
	require.NoError(t, err)

	_, err = aead.Open(nonce, ct, []byte("op=sign"))
	require.ErrorIs(t, err, ErrCryptoFailure)
}

func TestZeroize(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	Zeroize(buf)
	require.Equal(t, []byte{0, 0, 0, 0}, buf)
}
