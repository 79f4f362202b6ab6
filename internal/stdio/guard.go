// Package stdio keeps the MCP protocol channel clean while audio libraries
// run.
//
// The stdio MCP transport owns the process's standard output. Speech
// synthesis and playback libraries (and the C code under them) occasionally
// print progress or diagnostics to stdout, which would corrupt the JSON-RPC
// stream. A [Guard] points both the Go-level *os.File variable and, on unix,
// the underlying file descriptor at the null device for the duration of a
// scope, and restores both afterwards.
//
// Guards are not reentrant: acquiring a second guard on the same target
// while one is held saves the null device as the "original". Callers
// serialise audio operations (see internal/app), which makes this a
// non-issue in practice.
package stdio

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Guard is an acquired stdout redirection. Release must be called exactly
// once per Acquire; further calls are no-ops.
type Guard struct {
	target **os.File
	orig   *os.File
	null   *os.File

	fd    int // redirected descriptor, -1 when only the variable was swapped
	saved int // duplicate of the original descriptor

	once sync.Once
	err  error
}

// Acquire redirects *target to the null device. Typical use is
// Acquire(&os.Stdout).
func Acquire(target **os.File) (*Guard, error) {
	if target == nil || *target == nil {
		return nil, errors.New("stdio: nil target")
	}
	null, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("stdio: open %s: %w", os.DevNull, err)
	}

	g := &Guard{target: target, orig: *target, null: null, fd: -1, saved: -1}
	if fdRedirect {
		fd := int(g.orig.Fd())
		saved, err := dup(fd)
		if err != nil {
			_ = null.Close()
			return nil, fmt.Errorf("stdio: save fd %d: %w", fd, err)
		}
		if err := dupTo(int(null.Fd()), fd); err != nil {
			_ = closeFD(saved)
			_ = null.Close()
			return nil, fmt.Errorf("stdio: redirect fd %d: %w", fd, err)
		}
		g.fd, g.saved = fd, saved
	}
	*target = null
	return g, nil
}

// Release restores the original stream. It is safe to call more than once;
// only the first call has an effect and later calls return its result.
func (g *Guard) Release() error {
	g.once.Do(func() {
		*g.target = g.orig
		var errs []error
		if g.fd >= 0 {
			if err := dupTo(g.saved, g.fd); err != nil {
				errs = append(errs, fmt.Errorf("stdio: restore fd %d: %w", g.fd, err))
			}
			if err := closeFD(g.saved); err != nil {
				errs = append(errs, fmt.Errorf("stdio: close saved fd: %w", err))
			}
		}
		if err := g.null.Close(); err != nil {
			errs = append(errs, fmt.Errorf("stdio: close %s: %w", os.DevNull, err))
		}
		g.err = errors.Join(errs...)
	})
	return g.err
}

// Do runs fn with *target redirected to the null device. The original stream
// is restored when fn returns, fails, or panics. An error from fn takes
// precedence over a restore error.
func Do(target **os.File, fn func() error) (err error) {
	g, err := Acquire(target)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := g.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}

// Duplicate returns a private handle on f for the MCP transport. On unix it
// is a new descriptor for the same file, so writes keep reaching the client
// while a [Guard] points f's descriptor at the null device. Elsewhere it is
// f itself.
//
// Call Duplicate before the first Guard on f is acquired.
func Duplicate(f *os.File) (*os.File, error) {
	if f == nil {
		return nil, errors.New("stdio: nil file")
	}
	if !fdRedirect {
		return f, nil
	}
	fd, err := dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("stdio: duplicate %s: %w", f.Name(), err)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}
