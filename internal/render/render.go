// Package render turns valuations into HTML fragments, the board page and
// terminal summaries.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"kis-board/internal/models"
	"kis-board/pkg/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// marketNames maps snapshot labels to card captions.
var marketNames = map[string]string{
	models.LabelKOSPI:  "코스피",
	models.LabelDJI:    "다우 지수",
	models.LabelUSDKRW: "환율",
}

// MarketRow is one line of the market card.
type MarketRow struct {
	Name  string
	Quote models.IndexQuote
}

// MarketRows lists snapshot entries in display order. Missing labels are skipped.
func MarketRows(snapshot models.MarketSnapshot) []MarketRow {
	rows := make([]MarketRow, 0, len(models.SnapshotOrder))
	for _, label := range models.SnapshotOrder {
		q, ok := snapshot.Lookup(label)
		if !ok {
			continue
		}
		name := marketNames[label]
		if name == "" {
			name = label
		}
		rows = append(rows, MarketRow{Name: name, Quote: q})
	}
	return rows
}

// Border returns the card class for today's direction.
func Border(rising bool) string {
	if rising {
		return "border-danger"
	}
	return "border-primary"
}

var funcs = template.FuncMap{
	"amount":     utils.FormatAmount,
	"float":      utils.FormatFloat,
	"marketRate": utils.MarketSign,
	"border":     Border,
	"marketRows": MarketRows,
}

// PageData feeds the board page.
type PageData struct {
	Host           string // host[:port] the page talks back to
	PortfolioJSON  string
	IntervalMillis int64
}

// PublicURL is the og:url of the page.
func (p PageData) PublicURL() string {
	return "https://" + p.Host
}

// HTML renders board fragments and the page.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the embedded templates.
func NewHTML() (*HTML, error) {
	tmpl, err := template.New("board").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &HTML{tmpl: tmpl}, nil
}

// MustHTML is NewHTML that panics on a template error.
func MustHTML() *HTML {
	h, err := NewHTML()
	if err != nil {
		panic(err)
	}
	return h
}

// Frame renders the summary pushed to a client: total card, one card per
// holding, then the market card.
func (h *HTML) Frame(v *models.Valuation) (string, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "frame", v); err != nil {
		return "", fmt.Errorf("rendering frame: %w", err)
	}
	return buf.String(), nil
}

// Page writes the board page.
func (h *HTML) Page(w io.Writer, data PageData) error {
	if err := h.tmpl.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return nil
}
