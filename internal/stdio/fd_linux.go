package stdio

import "golang.org/x/sys/unix"

const fdRedirect = true

func dup(fd int) (int, error) { return unix.Dup(fd) }

// dupTo makes newfd refer to oldfd's file. Dup2 is missing on some linux
// architectures, so Dup3 with no flags is used instead.
func dupTo(oldfd, newfd int) error { return unix.Dup3(oldfd, newfd, 0) }

func closeFD(fd int) error { return unix.Close(fd) }
