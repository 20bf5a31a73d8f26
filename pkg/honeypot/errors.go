package honeypot

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

var (
	ErrPortInUse        = errors.New("address already in use")
	ErrPermissionDenied = errors.New("permission denied")
)

// bindError wraps the OS error of a failed bind with one of the package
// errors so callers can tell them apart with errors.Is.
func bindError(port int, err error) error {
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return fmt.Errorf("port %d: %w: %w", port, ErrPortInUse, err)
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
		return fmt.Errorf("port %d: %w: %w", port, ErrPermissionDenied, err)
	default:
		return fmt.Errorf("could not listen on port %d: %w", port, err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
