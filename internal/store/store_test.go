package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/models"
)

func samplePortfolio() models.Portfolio {
	return models.Portfolio{Items: []models.Holding{
		{Market: models.MarketKOR, Code: "005930", Name: "Samsung Electronics", Balance: 10, Price: 71200},
		{Market: models.MarketNAS, Code: "AAPL", Name: "Apple", Balance: 3, Price: 172.35},
		{Market: models.MarketNYS, Code: "BRK.B", Name: "Berkshire B", Balance: 0, Price: 410.5},
	}}
}

// backends returns a fresh store of every kind.
func backends(t *testing.T) map[string]PortfolioStore {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "board.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]PortfolioStore{
		BackendJSON:   NewJSONFileStore(filepath.Join(dir, "items.json"), zerolog.Nop()),
		BackendSQLite: sqlite,
	}
}

func TestStore_ReplaceThenLoad(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty.Items)

			require.NoError(t, s.Replace(ctx, samplePortfolio()))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, samplePortfolio(), got)

			// full replace, not merge
			smaller := models.Portfolio{Items: samplePortfolio().Items[:1]}
			require.NoError(t, s.Replace(ctx, smaller))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, smaller, got)

			require.NoError(t, s.Replace(ctx, models.Portfolio{}))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got.Items)
		})
	}
}

func TestStore_ReplaceRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		holding models.Holding
		target  error
	}{
		{"zero price", models.Holding{Market: "KOR", Code: "005930", Balance: 1, Price: 0}, apperrors.ErrZeroAcquisitionPrice},
		{"empty code", models.Holding{Market: "KOR", Code: " ", Balance: 1, Price: 1}, apperrors.ErrInvalidPortfolio},
		{"bad market", models.Holding{Market: "kor", Code: "005930", Balance: 1, Price: 1}, apperrors.ErrInvalidPortfolio},
		{"markup name", models.Holding{Market: "KOR", Code: "005930", Name: "<script>x</script>", Balance: 1, Price: 1}, apperrors.ErrInvalidPortfolio},
	}

	for name, s := range backends(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				require.NoError(t, s.Replace(ctx, samplePortfolio()))

				bad := samplePortfolio()
				bad.Items = append(bad.Items, tt.holding)
				err := s.Replace(ctx, bad)
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.target)

				var ve *apperrors.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Field, "items[3].")

				// previous portfolio untouched
				got, err := s.Load(ctx)
				require.NoError(t, err)
				assert.Equal(t, samplePortfolio(), got)
			})
		}
	}
}

func TestStore_ReplaceTrimsIdentifiers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := models.Portfolio{Items: []models.Holding{
				{Market: " KOR", Code: " 005930\t", Name: "삼성\x00전자", Balance: 1, Price: 100},
			}}
			require.NoError(t, s.Replace(ctx, p))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got.Items, 1)
			assert.Equal(t, models.MarketKOR, got.Items[0].Market)
			assert.Equal(t, "005930", got.Items[0].Code)
			assert.Equal(t, "삼성전자", got.Items[0].Name)
		})
	}
}

func TestStore_NegativeValuesAccepted(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := models.Portfolio{Items: []models.Holding{
				{Market: models.MarketKOR, Code: "005930", Balance: -5, Price: -1},
			}}
			assert.NoError(t, s.Replace(context.Background(), p))
		})
	}
}

func TestJSONFileStore_MalformedFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"items": [`), 0644))

	s := NewJSONFileStore(path, zerolog.Nop())
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
}

func TestJSONFileStore_UnreadableIsEmpty(t *testing.T) {
	// a directory at the file path cannot be read as a file
	dir := t.TempDir()
	s := NewJSONFileStore(dir, zerolog.Nop())

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestJSONFileStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "items.json")
	s := NewJSONFileStore(path, zerolog.Nop())
	require.NoError(t, s.Replace(context.Background(), samplePortfolio()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw["items"], 3)
	first := raw["items"][0]
	for _, key := range []string{"market", "code", "name", "balance", "price"} {
		assert.Contains(t, first, key)
	}

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(BackendJSON, filepath.Join(dir, "items.json"), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &JSONFileStore{}, s)

	s, err = Open(BackendSQLite, filepath.Join(dir, "board.db"), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", "x", zerolog.Nop())
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

// Property: replacing then loading returns the same holdings in order.
func TestProperty_SQLiteRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "roundtrip.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	markets := gen.OneConstOf(models.MarketKOR, models.MarketNAS, models.MarketNYS, models.MarketAMS)

	properties.Property("Replace then Load is identity", prop.ForAll(
		func(count int, market models.Market, balance int64, price float64) bool {
			ctx := context.Background()
			p := models.Portfolio{Items: []models.Holding{}}
			for i := 0; i < count; i++ {
				p.Items = append(p.Items, models.Holding{
					Market:  market,
					Code:    fmt.Sprintf("C%d", i),
					Name:    fmt.Sprintf("Holding %d", i),
					Balance: balance + int64(i),
					Price:   price + float64(i),
				})
			}
			if err := s.Replace(ctx, p); err != nil {
				return false
			}
			got, err := s.Load(ctx)
			if err != nil || len(got.Items) != len(p.Items) {
				return false
			}
			for i := range p.Items {
				if got.Items[i] != p.Items[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 20),
		markets,
		gen.Int64Range(0, 100000),
		gen.Float64Range(0.01, 500000),
	))

	properties.TestingRun(t)
}
