package signer

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// SolanaBackend signs a serialized Solana transaction message. txBytes
// must decode as a solana.Transaction; the result is its serialized,
// signed form.
type SolanaBackend struct{}

// NewSolanaBackend returns the default Solana signing backend.
func NewSolanaBackend() *SolanaBackend {
	return &SolanaBackend{}
}

func (b *SolanaBackend) Sign(txBytes, privKey []byte) ([]byte, error) {
	tx, err := solana.TransactionFromDecoder(solana.NewBinDecoder(txBytes))
	if err != nil {
		return nil, err
	}

	priv := solana.PrivateKey(privKey)
	pub := priv.PublicKey()

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &priv
		}
		return nil
	}); err != nil {
		return nil, errors.New("signer: solana signature failed")
	}

	return tx.MarshalBinary()
}

// EncodeAddress base58-encodes the public key derived from privKey, the
// way Solana's CLI and explorers display account addresses (never hex).
func (b *SolanaBackend) EncodeAddress(privKey []byte) string {
	pub := solana.PrivateKey(privKey).PublicKey()
	return base58.Encode(pub[:])
}

var _ AddressEncoder = (*SolanaBackend)(nil)
