package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Store implementations return these
// (optionally wrapped) so services can translate them into apperr errors.
//
//   - ErrNotFound: row does not exist
//   - ErrConflict: unique constraint violated
//   - ErrInvalidState: row is in the wrong state for the requested write
//   - ErrUnavailable: datastore unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
