// Package valuation computes per-holding and aggregate profit/loss figures
// from a portfolio and live market data.
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kis-board/internal/broker"
	apperrors "kis-board/internal/errors"
	"kis-board/internal/logging"
	"kis-board/internal/models"
	"kis-board/internal/security"
	"kis-board/pkg/utils"
)

// PortfolioSource loads the watched portfolio.
type PortfolioSource interface {
	Load(ctx context.Context) (models.Portfolio, error)
}

// Engine values portfolios against a MarketData source.
type Engine struct {
	market      broker.MarketData
	portfolios  PortfolioSource
	logger      zerolog.Logger
	concurrency int
	loc         *time.Location
	now         func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.WithComponent(logger, "valuation")
	}
}

// WithConcurrency bounds concurrent price lookups. 1 is sequential.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLocation sets the timezone of the result timestamp.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock sets the clock of the result timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a valuation engine. portfolios may be nil when only
// Valuate is used.
func NewEngine(market broker.MarketData, portfolios PortfolioSource, opts ...Option) *Engine {
	e := &Engine{
		market:      market,
		portfolios:  portfolios,
		logger:      zerolog.Nop(),
		concurrency: 1,
		loc:         utils.KoreaLocation,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh loads the current portfolio, fetches a fresh snapshot and values it.
// The portfolio version read at the start is the one valued.
func (e *Engine) Refresh(ctx context.Context) (*models.Valuation, error) {
	if e.portfolios == nil {
		return nil, fmt.Errorf("%w: no portfolio source configured", apperrors.ErrStoreUnavailable)
	}

	portfolio, err := e.portfolios.Load(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "loading portfolio")
	}

	snapshot, err := e.market.Snapshot(ctx)
	if err != nil {
		logger := logging.FromContext(ctx, e.logger)
		logger.Error().Err(err).Msg("Snapshot fetch failed")
		return nil, apperrors.Wrap(err, "fetching market snapshot")
	}

	return e.Valuate(ctx, portfolio, snapshot)
}

// Valuate computes the valuation of portfolio under snapshot. Any lookup
// failure aborts the pass.
func (e *Engine) Valuate(ctx context.Context, portfolio models.Portfolio, snapshot models.MarketSnapshot) (*models.Valuation, error) {
	start := time.Now()
	logger := logging.FromContext(ctx, e.logger)

	v, err := e.valuate(ctx, portfolio, snapshot)
	if err != nil {
		logging.LogValuation(logger, portfolio.Len(), 0, 0, time.Since(start), err)
		return nil, err
	}

	logging.LogValuation(logger, portfolio.Len(), v.TotalPL, v.TotalValue, time.Since(start), nil)
	return v, nil
}

func (e *Engine) valuate(ctx context.Context, portfolio models.Portfolio, snapshot models.MarketSnapshot) (*models.Valuation, error) {
	var fx int64 = 1
	if portfolio.HasForeign() {
		rate, ok := snapshot.Lookup(models.LabelUSDKRW)
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSnapshotMissing, models.LabelUSDKRW)
		}
		fx = int64(rate.Current)
	}

	for i, h := range portfolio.Items {
		if h.Price == 0 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("items[%d].price", i), h.Price,
				"acquisition price cannot be zero", apperrors.ErrZeroAcquisitionPrice)
		}
		if security.Unusual(h) {
			logger := logging.WithHolding(logging.FromContext(ctx, e.logger), string(h.Market), h.Code)
			logger.Warn().
				Int64("balance", h.Balance).
				Float64("price", h.Price).
				Msg("Holding has non-positive balance or negative price")
		}
	}

	results := make([]models.HoldingValuation, len(portfolio.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, h := range portfolio.Items {
		i, h := i, h
		g.Go(func() error {
			quote, err := e.market.CurrentPrice(gctx, h.Market, h.Code)
			if err != nil {
				return apperrors.Wrapf(err, "pricing %s:%s", h.Market, h.Code)
			}
			multiplier := fx
			if h.Market.IsDomestic() {
				multiplier = 1
			}
			results[i] = ValuateHolding(h, quote, multiplier)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v := &models.Valuation{
		Holdings:  results,
		Timestamp: utils.Timestamp(e.now(), e.loc),
		Snapshot:  snapshot,
	}
	for _, hv := range results {
		v.TotalPL += hv.CumulativePL
		v.TotalValue += hv.MarketValue
	}

	return v, nil
}
