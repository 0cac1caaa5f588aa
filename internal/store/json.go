package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/logging"
	"kis-board/internal/models"
)

// JSONFileStore keeps the portfolio in a single {"items": [...]} document.
type JSONFileStore struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewJSONFileStore creates a store backed by the file at path. The file need
// not exist yet.
func NewJSONFileStore(path string, logger zerolog.Logger) *JSONFileStore {
	return &JSONFileStore{
		path:   path,
		logger: logging.WithComponent(logger, "store"),
	}
}

// Path returns the backing file path.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the portfolio. A missing, unreadable or malformed file is an
// empty portfolio.
func (s *JSONFileStore) Load(ctx context.Context) (models.Portfolio, error) {
	if err := ctx.Err(); err != nil {
		return models.Portfolio{}, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("Portfolio file not found, using empty portfolio")
		} else {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Portfolio file unreadable, using empty portfolio")
		}
		return normalize(models.Portfolio{}), nil
	}

	var p models.Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Portfolio file malformed, using empty portfolio")
		return normalize(models.Portfolio{}), nil
	}

	return normalize(p), nil
}

// Replace validates and atomically overwrites the portfolio file.
func (s *JSONFileStore) Replace(ctx context.Context, portfolio models.Portfolio) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	portfolio = normalize(portfolio)
	if err := Validate(portfolio); err != nil {
		return err
	}

	data, err := json.MarshalIndent(portfolio, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding portfolio: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".items-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing portfolio: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing portfolio: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replacing portfolio: %v", apperrors.ErrStoreUnavailable, err)
	}

	s.logger.Info().Int("holdings", portfolio.Len()).Str("path", s.path).Msg("Portfolio replaced")
	return nil
}

// Close is a no-op.
func (s *JSONFileStore) Close() error {
	return nil
}
