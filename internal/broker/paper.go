package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/models"
)

// PaperMarketData is an in-memory MarketData with settable quotes. It backs
// offline runs and tests of everything downstream of the quote API.
type PaperMarketData struct {
	mu       sync.RWMutex
	quotes   map[string]models.Quote
	snapshot models.MarketSnapshot
	failures map[string]error

	priceCalls    int
	snapshotCalls int
}

// NewPaperMarketData creates an empty paper market.
func NewPaperMarketData() *PaperMarketData {
	return &PaperMarketData{
		quotes:   make(map[string]models.Quote),
		snapshot: make(models.MarketSnapshot),
		failures: make(map[string]error),
	}
}

func paperKey(market models.Market, code string) string {
	return string(market) + ":" + code
}

// paperFile is the on-disk layout of an offline quote sheet.
type paperFile struct {
	Quotes []struct {
		Market    models.Market `json:"market"`
		Code      string        `json:"code"`
		Current   float64       `json:"current"`
		Reference float64       `json:"reference"`
		Rate      string        `json:"rate"`
	} `json:"quotes"`
	Indices []models.IndexQuote `json:"indices"`
}

// ReadPaperMarketData builds a paper market from a JSON quote sheet:
//
//	{"quotes": [{"market": "KOR", "code": "005930", "current": 72000, "reference": 71000, "rate": "+1.4"}],
//	 "indices": [{"label": "USDKRW", "current": 1330.5, "previous_close": 1328, "rate": "0.19"}]}
func ReadPaperMarketData(r io.Reader) (*PaperMarketData, error) {
	var f paperFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, apperrors.NewDataError("paper", "quotes", "invalid quote sheet", err)
	}

	p := NewPaperMarketData()
	for _, q := range f.Quotes {
		p.SetQuote(q.Market, q.Code, models.Quote{Current: q.Current, Reference: q.Reference, Rate: q.Rate})
	}
	for _, idx := range f.Indices {
		if idx.Label == "" {
			continue
		}
		p.SetIndex(idx)
	}
	return p, nil
}

// LoadPaperMarketData reads a quote sheet from path.
func LoadPaperMarketData(path string) (*PaperMarketData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening quote sheet: %w", err)
	}
	defer f.Close()
	return ReadPaperMarketData(f)
}

// SetQuote sets the quote returned for a security.
func (p *PaperMarketData) SetQuote(market models.Market, code string, q models.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[paperKey(market, code)] = q
}

// SetIndex sets one snapshot entry.
func (p *PaperMarketData) SetIndex(q models.IndexQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot[q.Label] = q
}

// Fail makes lookups of a security return err.
func (p *PaperMarketData) Fail(market models.Market, code string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[paperKey(market, code)] = err
}

// CurrentPrice returns the configured quote.
func (p *PaperMarketData) CurrentPrice(ctx context.Context, market models.Market, code string) (models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return models.Quote{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.priceCalls++

	key := paperKey(market, code)
	if err := p.failures[key]; err != nil {
		return models.Quote{}, err
	}
	q, ok := p.quotes[key]
	if !ok {
		return models.Quote{}, fmt.Errorf("%w: no paper quote for %s", apperrors.ErrUpstreamRequest, key)
	}
	return q, nil
}

// Snapshot returns a copy of the configured snapshot.
func (p *PaperMarketData) Snapshot(ctx context.Context) (models.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshotCalls++

	out := make(models.MarketSnapshot, len(p.snapshot))
	out.Merge(p.snapshot)
	return out, nil
}

// PriceCalls returns the number of CurrentPrice calls served.
func (p *PaperMarketData) PriceCalls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.priceCalls
}

// SnapshotCalls returns the number of Snapshot calls served.
func (p *PaperMarketData) SnapshotCalls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotCalls
}
