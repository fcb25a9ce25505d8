package signer

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func TestECDSABackendSignVerifies(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	b := NewECDSABackend()
	msg := []byte("transaction body")
	sig, err := b.Sign(msg, priv.Serialize())
	require.NoError(t, err)
	require.Len(t, sig, 64)

	hash := sha256.Sum256(msg)
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	require.True(t, ecdsa.Verify(priv.PubKey().ToECDSA(), hash[:], r, s))
}

func TestECDSABackendDeterministicLength(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	b := NewECDSABackend()
	sig1, err := b.Sign([]byte("a"), priv.Serialize())
	require.NoError(t, err)
	sig2, err := b.Sign([]byte("b"), priv.Serialize())
	require.NoError(t, err)
	require.Len(t, sig1, 64)
	require.Len(t, sig2, 64)
	require.NotEqual(t, sig1, sig2)
}

func TestSolanaBackendEncodeAddressMatchesBase58PublicKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	b := NewSolanaBackend()
	addr := b.EncodeAddress(priv)
	require.Equal(t, base58.Encode(pub), addr)

	var ae AddressEncoder = b
	require.Equal(t, addr, ae.EncodeAddress(priv))
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("evm", NewEVMBackend(nil))
	b, err := r.Resolve("evm")
	require.NoError(t, err)
	require.NotNil(t, b)

	_, err = r.Resolve("unknown")
	require.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	first := NewECDSABackend()
	second := NewECDSABackend()
	r.Register("raw", first)
	r.Register("raw", second)

	got, err := r.Resolve("raw")
	require.NoError(t, err)
	require.Same(t, second, got)
}
