package hal

import "errors"

// Service status codes surface as sentinel errors so callers can classify
// remote failures with errors.Is. The conformance client propagates these
// verbatim; it never retries on its own.
var (
	ErrBadConfig            = errors.New("bad config")
	ErrBadDisplay           = errors.New("bad display")
	ErrBadLayer             = errors.New("bad layer")
	ErrBadParameter         = errors.New("bad parameter")
	ErrNoResources          = errors.New("no resources")
	ErrNotValidated         = errors.New("not validated")
	ErrUnsupported          = errors.New("unsupported")
	ErrSeamlessNotAllowed   = errors.New("seamless not allowed")
	ErrSeamlessNotPossible  = errors.New("seamless not possible")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
