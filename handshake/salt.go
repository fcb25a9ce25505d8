package handshake

import (
	"github.com/sage-x-project/soft-enclave/primitives"
	"github.com/sage-x-project/soft-enclave/session"
)

const (
	aeadInfo           = "soft-enclave/aead"
	ivInfo             = "soft-enclave/iv"
	aeadInfoHostToEnc  = "soft-enclave/aead/h2e"
	aeadInfoEncToHost  = "soft-enclave/aead/e2h"
	ivInfoHostToEnc    = "soft-enclave/iv/h2e"
	ivInfoEncToHost    = "soft-enclave/iv/e2h"
)

// deriveSalt builds the HKDF salt per Config.SaltMode. SaltOrigin binds
// only the agreed-upon origins and code hash; SaltHardened additionally
// binds both nonces and both raw public keys, giving full transcript
// binding (required by the "Transcript binding" testable property).
func deriveSalt(mode SaltMode, ctx Context) []byte {
	switch mode {
	case SaltHardened:
		return primitives.SHA256(
			ctx.NonceHost,
			ctx.NonceEnclave,
			ctx.HostPubRaw,
			ctx.EnclavePubRaw,
			[]byte(ctx.CodeHash),
		)
	default: // SaltOrigin
		return primitives.SHA256(
			[]byte(ctx.HostOrigin),
			[]byte("|"),
			[]byte(ctx.EnclaveOrigin),
			[]byte("|"),
			[]byte(ctx.CodeHash),
		)
	}
}

// deriveKeys runs the HKDF expansions that turn shared secret ikm into
// session keys, honoring Config.PerDirectionKeys.
func deriveKeys(cfg Config, ikm, salt []byte) (session.Keys, error) {
	if !cfg.PerDirectionKeys {
		aeadKey, err := primitives.HKDFExpand(ikm, salt, []byte(aeadInfo), primitives.KeySize)
		if err != nil {
			return session.Keys{}, err
		}
		baseNonce, err := primitives.HKDFExpand(ikm, salt, []byte(ivInfo), primitives.NonceSize)
		if err != nil {
			return session.Keys{}, err
		}
		shared := session.DirectionKeys{AEADKey: aeadKey, BaseNonce: baseNonce}
		return session.Keys{HostToEnclave: shared, EnclaveToHost: shared}, nil
	}

	h2eKey, err := primitives.HKDFExpand(ikm, salt, []byte(aeadInfoHostToEnc), primitives.KeySize)
	if err != nil {
		return session.Keys{}, err
	}
	h2eNonce, err := primitives.HKDFExpand(ikm, salt, []byte(ivInfoHostToEnc), primitives.NonceSize)
	if err != nil {
		return session.Keys{}, err
	}
	e2hKey, err := primitives.HKDFExpand(ikm, salt, []byte(aeadInfoEncToHost), primitives.KeySize)
	if err != nil {
		return session.Keys{}, err
	}
	e2hNonce, err := primitives.HKDFExpand(ikm, salt, []byte(ivInfoEncToHost), primitives.NonceSize)
	if err != nil {
		return session.Keys{}, err
	}

	return session.Keys{
		HostToEnclave: session.DirectionKeys{AEADKey: h2eKey, BaseNonce: h2eNonce},
		EnclaveToHost: session.DirectionKeys{AEADKey: e2hKey, BaseNonce: e2hNonce},
	}, nil
}
