package corpus

import (
	"errors"
	"fmt"
)

var (
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	ErrInvalidPath       = errors.New("invalid path")
	ErrNotFound          = errors.New("not found")

	errNoRoot = errors.New("no corpus root configured")
)

type CorpusUnavailableError struct {
	Root string
	Err  error
}

type InvalidPathError struct {
	Repository string
	Path       string
	Reason     string
}

type NotFoundError struct {
	Repository string
	Path       string
}

func (e *CorpusUnavailableError) Error() string {
	if e.Root == "" {
		return fmt.Sprintf("corpus unavailable: %v", e.Err)
	}
	return fmt.Sprintf("corpus root %s is unavailable: %v", e.Root, e.Err)
}

func (e *CorpusUnavailableError) Is(target error) bool {
	return target == ErrCorpusUnavailable
}

func (e *CorpusUnavailableError) Unwrap() error {
	return e.Err
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q in repository %q: %s", e.Path, e.Repository, e.Reason)
}

func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}

func (e *NotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("repository not found: %s", e.Repository)
	}
	return fmt.Sprintf("file not found: %s/%s", e.Repository, e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
