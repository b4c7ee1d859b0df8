package rotation

import (
	"errors"
	"fmt"
)

var (
	// ErrAllFactorsRemoved is returned when a rotation would strip
	// every factor from the credential. A vault sealed under an empty
	// credential could never be opened again, so this is checked as
	// the final gate of every rotation.
	ErrAllFactorsRemoved = errors.New("cannot remove all factors from the credential")

	// ErrPasswordAcquisition is returned (wrapped around the cause)
	// when the password collaborator fails, e.g. the confirmation did
	// not match or the input was rejected by policy.
	ErrPasswordAcquisition = errors.New("failed to set the new password")

	// ErrConflictingRequest is returned for a request that both sets
	// and removes the same factor kind. The CLI rejects these before
	// the engine ever sees them; this guards programmatic callers.
	ErrConflictingRequest = errors.New("conflicting rotation request")
)

// FileKeyLoadError reports that the key file named by the request could
// not be loaded or parsed. The wrapped cause carries the human-readable
// detail from the loader.
type FileKeyLoadError struct {
	Path string
	Err  error
}

func (e *FileKeyLoadError) Error() string {
	return fmt.Sprintf("loading the new key file failed: %s: %v", e.Path, e.Err)
}

func (e *FileKeyLoadError) Unwrap() error {
	return e.Err
}
