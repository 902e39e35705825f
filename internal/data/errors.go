package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrSourceRequired    = errors.New("source is required")
	ErrRunRecordRequired = errors.New("run record is required")
	ErrSmokeTestRequired = errors.New("smoke test result is required")
	ErrCredentialInvalid = errors.New("credential expires_at is required")
	ErrEmptyFingerprint  = errors.New("fingerprint hash is required")
)
