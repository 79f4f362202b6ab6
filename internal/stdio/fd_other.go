//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package stdio

import "errors"

// Only the os.File variable is swapped on these platforms.
const fdRedirect = false

var errUnsupported = errors.New("stdio: descriptor redirection unsupported")

func dup(int) (int, error) { return -1, errUnsupported }

func dupTo(int, int) error { return errUnsupported }

func closeFD(int) error { return nil }
