package enclave

import (
	"context"
	"encoding/json"

	"github.com/sage-x-project/soft-enclave/primitives"
	"github.com/sage-x-project/soft-enclave/signer"
)

// SignOperation builds the default "sign" table entry, wired to registry.
// The decrypted private key is zeroized before the handler returns,
// success or failure, per spec.md §4.5.
func SignOperation(registry *signer.Registry) Operation {
	return Operation{
		Name:   "sign",
		AADIn:  AADSignIn,
		AADOut: AADSignOut,
		Handler: func(ctx context.Context, body json.RawMessage) (any, error) {
			var req SignRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, err
			}
			defer primitives.Zeroize(req.PrivKey)

			backend, err := registry.Resolve(req.Chain)
			if err != nil {
				return nil, err
			}

			sig, err := backend.Sign(req.TxBytes, req.PrivKey)
			if err != nil {
				return nil, err
			}
			result := SignResult{Signature: sig}
			if enc, ok := backend.(signer.AddressEncoder); ok {
				result.Address = enc.EncodeAddress(req.PrivKey)
			}
			return result, nil
		},
	}
}
