package pipeline

import "fmt"

// ErrStorage wraps filesystem failures while touching the ledger or writing
// an image.
type ErrStorage struct {
	Op   string
	Path string
	Err  error
}

func (e ErrStorage) Error() string {
	return fmt.Errorf("storage: %s %s: %w", e.Op, e.Path, e.Err).Error()
}

func (e ErrStorage) Unwrap() error {
	return e.Err
}
