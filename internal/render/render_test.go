package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kis-board/internal/models"
)

func sampleValuation() *models.Valuation {
	return &models.Valuation{
		Timestamp:  "2024-03-04 15:30:00",
		TotalPL:    1234567,
		TotalValue: -9876543,
		Holdings: []models.HoldingValuation{
			{
				Holding:        models.Holding{Market: models.MarketKOR, Code: "005930", Name: "Samsung <b>", Balance: 10, Price: 100},
				CurrentPrice:   120,
				Rate:           "+9.09",
				TodayPL:        100,
				CumulativePL:   200,
				CumulativeRate: "+20.0",
				MarketValue:    1200,
				Rising:         true,
				DetailURL:      "https://m.stock.naver.com/domestic/stock/005930/discuss",
			},
			{
				Holding:        models.Holding{Market: models.MarketNAS, Code: "AAPL", Name: "Apple", Balance: 1, Price: 200},
				CurrentPrice:   250800,
				Rate:           "-0.50",
				TodayPL:        -1320,
				CumulativePL:   -13200,
				CumulativeRate: "-5.0",
				MarketValue:    250800,
				DetailURL:      "https://m.stock.naver.com/worldstock/stock/AAPL/discuss",
			},
		},
		Snapshot: models.MarketSnapshot{
			models.LabelUSDKRW: {Label: models.LabelUSDKRW, Current: 1320.5, Rate: "0.42"},
			models.LabelKOSPI:  {Label: models.LabelKOSPI, Current: 2650.31, Rate: "-0.47"},
		},
	}
}

func TestFrame(t *testing.T) {
	h, err := NewHTML()
	require.NoError(t, err)

	out, err := h.Frame(sampleValuation())
	require.NoError(t, err)

	assert.Contains(t, out, "2024-03-04 15:30:00")
	assert.Contains(t, out, "1,234,567 원")
	assert.Contains(t, out, "( -9,876,543원 )")
	assert.Contains(t, out, "[+20.0%]")
	assert.Contains(t, out, "-13,200 원 [-5.0%]")
	assert.Contains(t, out, "border-danger")
	assert.Contains(t, out, "border-primary")
	assert.Contains(t, out, "Samsung &lt;b&gt;")
	assert.NotContains(t, out, "Samsung <b>")

	// total card, then holdings in order, then market card
	total := strings.Index(out, "총 합계")
	first := strings.Index(out, "005930")
	second := strings.Index(out, "AAPL")
	market := strings.Index(out, "시장 현황")
	assert.True(t, total < first && first < second && second < market, "frame sections out of order")

	// market rows: KOSPI before FX, missing DJI skipped, sign added unless negative
	kospi := strings.Index(out, "코스피 : 2650.31 [-0.47%]")
	fx := strings.Index(out, "환율 : 1320.5 [+0.42%]")
	assert.True(t, kospi >= 0 && fx > kospi, "market rows missing or out of order:\n%s", out)
	assert.NotContains(t, out, "다우 지수")
}

func TestFrame_Empty(t *testing.T) {
	out, err := MustHTML().Frame(&models.Valuation{Timestamp: "2024-03-04 09:00:00"})
	require.NoError(t, err)
	assert.Contains(t, out, "0 원")
	assert.Contains(t, out, "시장 현황")
	assert.NotContains(t, out, "card-footer")
}

func TestPage(t *testing.T) {
	var buf bytes.Buffer
	err := MustHTML().Page(&buf, PageData{
		Host:           "board.example.com",
		PortfolioJSON:  `{"items": [{"name": "<x>"}]}`,
		IntervalMillis: 5000,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `const host = "board.example.com";`)
	assert.Regexp(t, `const interval = \s*5000\s*;`, out)
	assert.Contains(t, out, `content="https://board.example.com"`)
	assert.Contains(t, out, "&lt;x&gt;")
	assert.Contains(t, out, `id="symbol-list"`)
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	NewTerminal(&buf, false).Valuation(sampleValuation())

	out := buf.String()
	assert.Contains(t, out, "총 합계 1,234,567 원 (-9,876,543 원)")
	assert.Contains(t, out, "Samsung <b> (KOR:005930)")
	assert.Contains(t, out, "총 손익   200 원 [+20.0%]")
	assert.Contains(t, out, "[+0.42%]")
	assert.NotContains(t, out, "\x1b[")
}

func TestTerminalFrames(t *testing.T) {
	var buf bytes.Buffer
	NewTerminal(&buf, false).Valuation(sampleValuation())

	frame, err := NewTerminalFrames(false).Frame(sampleValuation())
	require.NoError(t, err)
	assert.Equal(t, buf.String(), frame)
}

func TestTerminal_Conclusions(t *testing.T) {
	var buf bytes.Buffer
	NewTerminal(&buf, false).Conclusions("005930", []models.Conclusion{
		{Time: "140100", Price: 71200, Sign: "2", Change: 1200, Volume: 35},
		{Time: "140059", Price: 69000, Sign: "5", Change: -1000, Volume: 1200},
	})

	out := buf.String()
	assert.Contains(t, out, "71,200")
	assert.Contains(t, out, "+1200.0")
	assert.Contains(t, out, "-1000.0")
	assert.Contains(t, out, "1,200")
}

func TestMarketRows(t *testing.T) {
	rows := MarketRows(models.MarketSnapshot{
		models.LabelDJI:    {Label: models.LabelDJI, Current: 39000.1},
		models.LabelKOSPI:  {Label: models.LabelKOSPI, Current: 2650},
		models.LabelUSDKRW: {Label: models.LabelUSDKRW, Current: 1320},
		"EXTRA":            {Label: "EXTRA"},
	})
	require.Len(t, rows, 3)
	assert.Equal(t, "코스피", rows[0].Name)
	assert.Equal(t, "다우 지수", rows[1].Name)
	assert.Equal(t, "환율", rows[2].Name)
}
