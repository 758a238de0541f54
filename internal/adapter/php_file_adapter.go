package adapter

import (
	"context"

	"github.com/mouse-blink/coverguard/internal/phpsource"
)

// PHPFileAdapter encapsulates PHP-specific parsing so the domain layer can
// focus on block extraction while delegating syntax details to an
// infrastructure component.
type PHPFileAdapter interface {
	// Parse builds the structural syntax tree of a PHP file.
	Parse(ctx context.Context, filename string, src []byte) (*phpsource.File, error)
}

// LocalPHPFileAdapter provides a concrete PHPFileAdapter backed by phpsource.
type LocalPHPFileAdapter struct{}

// NewLocalPHPFileAdapter constructs a LocalPHPFileAdapter.
func NewLocalPHPFileAdapter() *LocalPHPFileAdapter {
	return &LocalPHPFileAdapter{}
}

// Parse builds a syntax tree for the provided filename/source pair.
func (a *LocalPHPFileAdapter) Parse(ctx context.Context, filename string, src []byte) (*phpsource.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return phpsource.Parse(filename, src)
}
