package searchdb

import "errors"

var ErrClosed = errors.New("title dictionary is closed")

// Dictionary answers prefix lookups over a fixed set of titles.
type Dictionary interface {
	Prefix(prefix string, limit int) ([]string, error)
	Size() int
	Close() error
}
