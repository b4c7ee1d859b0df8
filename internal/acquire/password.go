// Package acquire materializes new credential factors from external
// sources: the terminal, stdin, the OS keyring, and key files. The
// types here implement the PasswordAcquirer and FileKeyLoader
// interfaces consumed by pkg/rotation, keeping all I/O out of the
// rotation engine itself.
package acquire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/systmms/keyturn/pkg/credential"
)

var (
	// ErrPasswordMismatch is returned when the confirmation prompt
	// does not repeat the first entry.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrEmptyPassword is returned when the user enters nothing. An
	// empty password factor would silently weaken the credential.
	ErrEmptyPassword = errors.New("an empty password is not allowed")
)

// PasswordReader obtains raw password bytes from somewhere. The caller
// owns the returned slice and should zero it after deriving a factor.
type PasswordReader interface {
	ReadPassword(ctx context.Context) ([]byte, error)
}

// PasswordSource adapts a PasswordReader into a rotation.PasswordAcquirer.
// If OnAccept is set it receives the accepted password before it is
// derived and wiped; the edit command uses this for --remember.
type PasswordSource struct {
	Reader   PasswordReader
	OnAccept func(password []byte) error
}

// AcquirePassword reads a password and derives the password factor.
func (s *PasswordSource) AcquirePassword(ctx context.Context) (credential.Factor, error) {
	pw, err := s.Reader.ReadPassword(ctx)
	if err != nil {
		return credential.Factor{}, err
	}
	defer wipe(pw)

	if s.OnAccept != nil {
		if err := s.OnAccept(pw); err != nil {
			return credential.Factor{}, err
		}
	}

	return credential.NewPasswordFactor(pw), nil
}

// TerminalReader prompts for a password on the terminal with echo
// disabled. With Confirm set it prompts twice and enforces the
// mismatch and empty-input policy; without it a single entry (for
// unlocking an existing vault) is accepted as-is, including empty.
type TerminalReader struct {
	In      *os.File  // terminal to read from; defaults to os.Stdin
	Out     io.Writer // prompt destination; defaults to os.Stderr
	Prompt  string    // first prompt; defaults to "Enter password: "
	Confirm bool
}

// ReadPassword blocks on the terminal until the user answers. The
// context is only consulted between prompts; cancellation of a pending
// terminal read is the caller's concern, as with any blocking prompt.
func (r *TerminalReader) ReadPassword(ctx context.Context) ([]byte, error) {
	in := r.In
	if in == nil {
		in = os.Stdin
	}
	out := r.Out
	if out == nil {
		out = os.Stderr
	}
	if !term.IsTerminal(int(in.Fd())) {
		return nil, fmt.Errorf("no terminal available for the password prompt (use --non-interactive to read from stdin)")
	}

	prompt := r.Prompt
	if prompt == "" {
		prompt = "Enter password: "
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fmt.Fprint(out, prompt)
	first, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	if !r.Confirm {
		return first, nil
	}

	if len(first) == 0 {
		return nil, ErrEmptyPassword
	}

	if err := ctx.Err(); err != nil {
		wipe(first)
		return nil, err
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		wipe(first)
		return nil, fmt.Errorf("reading password confirmation: %w", err)
	}
	defer wipe(second)

	if string(first) != string(second) {
		wipe(first)
		return nil, ErrPasswordMismatch
	}

	return first, nil
}

// LineReader reads one password per line from a stream. Used in
// non-interactive mode, where the caller pipes passwords on stdin.
type LineReader struct {
	scanner *bufio.Scanner
}

// NewLineReader wraps r for line-at-a-time password reads.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{scanner: bufio.NewScanner(r)}
}

// ReadPassword returns the next line with the trailing newline and any
// carriage return stripped.
func (l *LineReader) ReadPassword(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading password from input: %w", err)
		}
		return nil, io.EOF
	}
	line := strings.TrimSuffix(l.scanner.Text(), "\r")
	if line == "" {
		return nil, ErrEmptyPassword
	}
	return []byte(line), nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
