package supervisor

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// ErrEmptyCommand is returned for an empty or whitespace-only command line.
var ErrEmptyCommand = errors.New("empty command")

// SpawnError reports that no child process could be created.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	if e.IsNotFound() {
		return fmt.Sprintf("%s: command not found", e.Program)
	}
	return fmt.Sprintf("spawning %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// IsNotFound reports whether the program or launcher does not exist.
func (e *SpawnError) IsNotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, fs.ErrNotExist)
}

// IsNotFound reports whether err is a SpawnError for a missing program.
func IsNotFound(err error) bool {
	var se *SpawnError
	return errors.As(err, &se) && se.IsNotFound()
}
