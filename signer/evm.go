package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// EVMBackend signs an RLP-encoded Ethereum transaction with an EIP-155
// signer. txBytes must decode as *types.Transaction; the result is the
// RLP encoding of the signed transaction.
type EVMBackend struct {
	ChainID *big.Int
}

// NewEVMBackend returns a backend that signs for the given chain id.
func NewEVMBackend(chainID *big.Int) *EVMBackend {
	return &EVMBackend{ChainID: chainID}
}

func (b *EVMBackend) Sign(txBytes, privKey []byte) ([]byte, error) {
	priv, err := crypto.ToECDSA(privKey)
	if err != nil {
		return nil, err
	}

	var tx types.Transaction
	if err := rlp.DecodeBytes(txBytes, &tx); err != nil {
		return nil, err
	}

	signer := types.LatestSignerForChainID(b.ChainID)
	signedTx, err := types.SignTx(&tx, signer, priv)
	if err != nil {
		return nil, err
	}

	return rlp.EncodeToBytes(signedTx)
}
