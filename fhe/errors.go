package fhe

import "errors"

var (
	// ErrDependencyMissing: the orchestrator was constructed without a
	// relayer session. Fail fast instead of scanning for one at call time.
	ErrDependencyMissing = errors.New("fhe: relayer session dependency missing")

	// ErrDecryptionUnavailable: no relayer session could be established.
	ErrDecryptionUnavailable = errors.New("fhe: decryption service unavailable")

	// ErrSigningRejected: the signer declined the decryption authorization.
	ErrSigningRejected = errors.New("fhe: signing rejected")

	// ErrDecryptionFailed: the relayer accepted the request but decryption
	// failed. The underlying service error is attached.
	ErrDecryptionFailed = errors.New("fhe: decryption failed")
)
