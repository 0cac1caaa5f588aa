package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"kis-board/internal/models"
	"kis-board/pkg/utils"
)

// Terminal prints valuations as plain text, optionally coloured.
type Terminal struct {
	w     io.Writer
	up    *color.Color
	down  *color.Color
	title *color.Color
	dim   *color.Color
}

// NewTerminal creates a terminal renderer writing to w.
func NewTerminal(w io.Writer, colored bool) *Terminal {
	t := &Terminal{
		w:     w,
		up:    color.New(color.FgRed),
		down:  color.New(color.FgBlue),
		title: color.New(color.Bold),
		dim:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{t.up, t.down, t.title, t.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

// TerminalFrames renders a valuation into a terminal text frame, for the
// hub-driven watch loop.
type TerminalFrames struct {
	colored bool
}

// NewTerminalFrames creates a terminal frame renderer.
func NewTerminalFrames(colored bool) *TerminalFrames {
	return &TerminalFrames{colored: colored}
}

// Frame implements stream.FrameRenderer.
func (f *TerminalFrames) Frame(v *models.Valuation) (string, error) {
	var b strings.Builder
	NewTerminal(&b, f.colored).Valuation(v)
	return b.String(), nil
}

// pl colours a signed amount. Gains are red and losses blue, as on KRX boards.
func (t *Terminal) pl(amount int64, text string) string {
	switch {
	case amount > 0:
		return t.up.Sprint(text)
	case amount < 0:
		return t.down.Sprint(text)
	default:
		return text
	}
}

// Valuation prints the summary: timestamp and totals, holdings, market.
func (t *Terminal) Valuation(v *models.Valuation) {
	fmt.Fprintf(t.w, "%s\n", t.dim.Sprint(v.Timestamp))
	fmt.Fprintf(t.w, "%s %s 원 (%s 원)\n\n",
		t.title.Sprint("총 합계"),
		t.pl(v.TotalPL, utils.FormatAmount(v.TotalPL)),
		utils.FormatAmount(v.TotalValue))

	for _, hv := range v.Holdings {
		t.Holding(hv)
	}

	rows := MarketRows(v.Snapshot)
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(t.w, t.title.Sprint("시장 현황"))
	for _, row := range rows {
		rate := utils.MarketSign(row.Quote.Rate)
		c := t.up
		if strings.HasPrefix(rate, "-") {
			c = t.down
		}
		fmt.Fprintf(t.w, "  %-8s %12s  %s\n", row.Name, utils.FormatFloat(row.Quote.Current), c.Sprintf("[%s%%]", rate))
	}
}

// Holding prints one holding block.
func (t *Terminal) Holding(hv models.HoldingValuation) {
	head := t.down
	if hv.Rising {
		head = t.up
	}
	fmt.Fprintf(t.w, "%s %s\n", head.Sprint("■"), t.title.Sprintf("%s (%s:%s)", hv.Holding.Name, hv.Holding.Market, hv.Holding.Code))
	fmt.Fprintf(t.w, "  현재가    %s 원 [%s%%]\n", utils.FormatAmount(hv.CurrentPrice), hv.Rate)
	fmt.Fprintf(t.w, "  오늘 손익 %s 원\n", t.pl(hv.TodayPL, utils.FormatAmount(hv.TodayPL)))
	fmt.Fprintf(t.w, "  총 손익   %s 원 [%s%%]\n", t.pl(hv.CumulativePL, utils.FormatAmount(hv.CumulativePL)), hv.CumulativeRate)
	fmt.Fprintf(t.w, "  %s\n\n", t.dim.Sprintf("총 %s 원", utils.FormatAmount(hv.MarketValue)))
}

// Conclusions prints intraday executions as a table.
func (t *Terminal) Conclusions(code string, items []models.Conclusion) {
	fmt.Fprintln(t.w, t.title.Sprintf("%s 시간대별 체결", code))
	fmt.Fprintf(t.w, "%-8s %12s %10s %10s\n", "TIME", "PRICE", "CHANGE", "VOLUME")
	for _, c := range items {
		change := utils.FormatFloat(c.Change)
		// sign codes 1/2 rise, 4/5 fall
		switch c.Sign {
		case "1", "2":
			change = t.up.Sprint("+" + change)
		case "4", "5":
			change = t.down.Sprint("-" + strings.TrimPrefix(change, "-"))
		}
		fmt.Fprintf(t.w, "%-8s %12s %10s %10s\n", c.Time, utils.FormatAmount(int64(c.Price)), change, utils.FormatAmount(c.Volume))
	}
}
