package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, clients and secret
// providers return these (optionally wrapped) and the pipeline translates them
// into coded domain errors.
//
//   - ErrNotFound: document, secret or resource does not exist
//   - ErrUnavailable: backing store or remote temporarily unreachable
//   - ErrInvalidState: partition or cursor in a state the operation cannot use
//   - ErrMalformed: a remote returned data that cannot be interpreted
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
	ErrMalformed    = errors.New("malformed")
)
