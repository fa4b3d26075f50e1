package types

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks credential-store outages. It is the one failure
// mode a search must not route around: callers propagate it as a hard error
// instead of degrading to empty results.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// ErrNotConnected marks operations that need a stored token for an account
// that has never connected (or has been disconnected).
var ErrNotConnected = errors.New("account not connected")

// ErrUnknownProvider is returned when a request names a provider that does
// not exist.
type ErrUnknownProvider struct {
	Name string
}

func (e *ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Name)
}

// ErrUnknownAccount is returned when a request filter references an alias no
// configured account carries.
type ErrUnknownAccount struct {
	Alias string
}

func (e *ErrUnknownAccount) Error() string {
	return fmt.Sprintf("unknown account: %s", e.Alias)
}

// ErrUnknownSource is returned when a source filter entry is neither a
// provider name nor a known source tag.
type ErrUnknownSource struct {
	Tag string
}

func (e *ErrUnknownSource) Error() string {
	return fmt.Sprintf("unknown source: %s", e.Tag)
}

// IsClientError reports whether err is caused by bad request input rather
// than a system failure.
func IsClientError(err error) bool {
	var up *ErrUnknownProvider
	var ua *ErrUnknownAccount
	var us *ErrUnknownSource
	return errors.As(err, &up) || errors.As(err, &ua) || errors.As(err, &us)
}
