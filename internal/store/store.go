// Package store provides portfolio persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/models"
	"kis-board/internal/security"
)

// PortfolioStore holds the watched portfolio. It is read and replaced as a
// whole; there is no partial update.
type PortfolioStore interface {
	Load(ctx context.Context) (models.Portfolio, error)
	Replace(ctx context.Context, portfolio models.Portfolio) error
	Close() error
}

// Backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open creates the store selected by backend.
func Open(backend, path string, logger zerolog.Logger) (PortfolioStore, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONFileStore(path, logger), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", apperrors.ErrConfigInvalid, backend)
	}
}

var validator = security.NewInputValidator(true)

// Validate checks a portfolio before it is persisted.
func Validate(portfolio models.Portfolio) error {
	return validator.ValidatePortfolio(portfolio)
}

// normalize guarantees a non-nil item slice so an empty portfolio encodes as [].
// Market and code are trimmed since they are sent upstream as query values;
// control characters are stripped from display names.
func normalize(p models.Portfolio) models.Portfolio {
	items := make([]models.Holding, len(p.Items))
	for i, h := range p.Items {
		h.Market = models.Market(strings.TrimSpace(string(h.Market)))
		h.Code = strings.TrimSpace(h.Code)
		h.Name = security.SanitizeText(h.Name)
		items[i] = h
	}
	p.Items = items
	return p
}
