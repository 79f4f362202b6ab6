//go:build darwin || freebsd || netbsd || openbsd

package stdio

import "golang.org/x/sys/unix"

const fdRedirect = true

func dup(fd int) (int, error) { return unix.Dup(fd) }

func dupTo(oldfd, newfd int) error { return unix.Dup2(oldfd, newfd) }

func closeFD(fd int) error { return unix.Close(fd) }
