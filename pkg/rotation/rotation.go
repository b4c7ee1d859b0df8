// Package rotation implements composite credential rotation.
//
// Rotation takes the credential currently protecting a vault plus a
// change request (set/unset password, set/unset key file) and produces
// a new credential, or a typed error. The engine owns the bookkeeping
// only: which factors survive, which are replaced, and the terminal
// invariant that a credential must never end up empty. Obtaining new
// factor material (prompting for a password, reading a key file) is
// delegated to the PasswordAcquirer and FileKeyLoader collaborators so
// the engine itself performs no I/O and is fully unit-testable with
// synthetic factors.
//
// # Rotation Algorithm
//
// A single pass over the current credential's factors classifies each
// one by kind:
//
//   - Password: dropped when the request removes or updates the
//     password, kept otherwise.
//   - File key: dropped when the request removes the key file or names
//     a new one, kept otherwise.
//   - Challenge-response: always kept, untouched.
//   - Anything else: always kept. A factor kind this engine does not
//     understand is preserved rather than silently dropped.
//
// Replacement factors are then acquired and appended, and only after
// all additions is the result checked for emptiness. Dropping first and
// adding second keeps "replace" decomposed into two independently
// simple rules, and evaluating the empty check last means it catches
// every combination that would zero out the factor set, including ones
// the caller did not anticipate.
//
// The engine never mutates the current credential, never logs, and
// returns no partial state: either a complete valid credential or an
// error from the taxonomy in errors.go.
package rotation

import (
	"context"
	"fmt"

	"github.com/systmms/keyturn/pkg/credential"
)

// PasswordAcquirer obtains and confirms a new password from the user
// and returns the derived password factor. Implementations own the
// input policy (confirmation matching, empty passwords); a rejection
// surfaces as an error.
type PasswordAcquirer interface {
	AcquirePassword(ctx context.Context) (credential.Factor, error)
}

// FileKeyLoader loads and parses the key file at path and returns the
// derived file-key factor.
type FileKeyLoader interface {
	LoadFileKey(ctx context.Context, path string) (credential.Factor, error)
}

// Request describes one credential change. The zero value is a valid
// no-op request.
//
// UpdatePassword and RemovePassword are mutually exclusive, as are a
// non-empty NewFileKeyPath and RemoveFileKey. Callers are expected to
// reject conflicting combinations at their own surface (the CLI does,
// with a friendlier message); the engine re-validates anyway and fails
// with ErrConflictingRequest so a malformed request from a programmatic
// caller can never reach the classification pass.
type Request struct {
	// UpdatePassword replaces the password factor with a newly
	// acquired one (or adds one if the credential has none).
	UpdatePassword bool

	// RemovePassword drops the password factor.
	RemovePassword bool

	// NewFileKeyPath, when non-empty, replaces the file-key factor
	// with one loaded from this path (or adds one).
	NewFileKeyPath string

	// RemoveFileKey drops the file-key factor.
	RemoveFileKey bool
}

// IsZero reports whether the request changes nothing. Rotating with a
// zero request returns a credential with the same factors; callers use
// this to short-circuit with a "nothing to do" message instead.
func (r Request) IsZero() bool {
	return !r.UpdatePassword && !r.RemovePassword && r.NewFileKeyPath == "" && !r.RemoveFileKey
}

// Validate checks the two mutual-exclusion pairs.
func (r Request) Validate() error {
	if r.UpdatePassword && r.RemovePassword {
		return fmt.Errorf("%w: update and remove the password", ErrConflictingRequest)
	}
	if r.NewFileKeyPath != "" && r.RemoveFileKey {
		return fmt.Errorf("%w: set and remove the key file", ErrConflictingRequest)
	}
	return nil
}

// Engine performs credential rotation. It is stateless apart from its
// two acquisition collaborators and safe for concurrent use if they
// are.
type Engine struct {
	passwords PasswordAcquirer
	fileKeys  FileKeyLoader
}

// NewEngine creates a rotation engine. Either collaborator may be nil
// when the caller knows the corresponding request field will never be
// set; a request that needs a nil collaborator fails with the matching
// acquisition error.
func NewEngine(passwords PasswordAcquirer, fileKeys FileKeyLoader) *Engine {
	return &Engine{
		passwords: passwords,
		fileKeys:  fileKeys,
	}
}

// Rotate builds the new composite credential for the given request.
//
// Surviving factors keep their order from current; newly acquired
// factors (password first, then file key) are appended after them.
// current is never modified, so a failed rotation leaves the caller
// free to retry with a corrected request.
//
// Errors: ErrConflictingRequest for a request violating Validate,
// ErrPasswordAcquisition when the password collaborator fails, a
// *FileKeyLoadError when the key file cannot be loaded, and
// ErrAllFactorsRemoved when the result would hold no factors at all.
func (e *Engine) Rotate(ctx context.Context, current *credential.Composite, req Request) (*credential.Composite, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	next := credential.New()

	for _, f := range current.Factors() {
		switch f.Kind() {
		case credential.KindPassword:
			if req.RemovePassword || req.UpdatePassword {
				continue
			}
			next.AddFactor(f)

		case credential.KindFileKey:
			if req.RemoveFileKey || req.NewFileKeyPath != "" {
				continue
			}
			next.AddFactor(f)

		default:
			// Challenge-response factors and unknown kinds pass
			// through untouched.
			next.AddFactor(f)
		}
	}

	if req.UpdatePassword {
		f, err := e.acquirePassword(ctx)
		if err != nil {
			return nil, err
		}
		next.AddFactor(f)
	}

	if req.NewFileKeyPath != "" {
		f, err := e.loadFileKey(ctx, req.NewFileKeyPath)
		if err != nil {
			return nil, err
		}
		next.AddFactor(f)
	}

	// Always last, after all additions: a request that removes
	// everything and adds nothing must be rejected rather than produce
	// an unusable vault.
	if next.IsEmpty() {
		return nil, ErrAllFactorsRemoved
	}

	return next, nil
}

func (e *Engine) acquirePassword(ctx context.Context) (credential.Factor, error) {
	if e.passwords == nil {
		return credential.Factor{}, fmt.Errorf("%w: no password source configured", ErrPasswordAcquisition)
	}
	f, err := e.passwords.AcquirePassword(ctx)
	if err != nil {
		return credential.Factor{}, fmt.Errorf("%w: %w", ErrPasswordAcquisition, err)
	}
	return f, nil
}

func (e *Engine) loadFileKey(ctx context.Context, path string) (credential.Factor, error) {
	if e.fileKeys == nil {
		return credential.Factor{}, &FileKeyLoadError{Path: path, Err: fmt.Errorf("no key file loader configured")}
	}
	f, err := e.fileKeys.LoadFileKey(ctx, path)
	if err != nil {
		return credential.Factor{}, &FileKeyLoadError{Path: path, Err: err}
	}
	return f, nil
}
