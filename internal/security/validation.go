// Package security provides input validation and credential masking.
package security

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/models"
)

// Validation patterns
var (
	// Market pattern: KOR or a three-letter overseas exchange code
	marketPattern = regexp.MustCompile(`^[A-Z]{3}$`)

	// Code pattern: KRX short codes (005930, 0080G0) and overseas tickers (BRK.B, BF-B)
	codePattern = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,16}$`)

	// Script/markup injection in display names
	markupPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*/?\s*script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on[a-z]+\s*=`),
	}
)

const maxNameLength = 100

// InputValidator validates portfolio payloads at ingestion.
type InputValidator struct {
	strictMode bool
}

// NewInputValidator creates a new input validator.
// Strict mode additionally rejects markup in display names.
func NewInputValidator(strictMode bool) *InputValidator {
	return &InputValidator{strictMode: strictMode}
}

// ValidatePortfolio validates every holding, reporting the first failure.
func (v *InputValidator) ValidatePortfolio(p models.Portfolio) error {
	for i, h := range p.Items {
		if err := v.ValidateHolding(h); err != nil {
			var ve *apperrors.ValidationError
			if apperrors.As(err, &ve) {
				ve.Field = fmt.Sprintf("items[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}

// ValidateHolding validates one holding. Negative balances and prices pass;
// a zero price is rejected because cumulative percent divides by it.
func (v *InputValidator) ValidateHolding(h models.Holding) error {
	if !marketPattern.MatchString(string(h.Market)) {
		return apperrors.NewValidationError("market", h.Market, "market must be KOR or a three-letter exchange code", nil)
	}

	code := strings.TrimSpace(h.Code)
	if code == "" {
		return apperrors.NewValidationError("code", h.Code, "code cannot be empty", nil)
	}
	if !codePattern.MatchString(code) {
		return apperrors.NewValidationError("code", h.Code, "invalid code format", nil)
	}

	if utf8.RuneCountInString(h.Name) > maxNameLength {
		return apperrors.NewValidationError("name", string([]rune(h.Name)[:20])+"...", fmt.Sprintf("name too long (max %d characters)", maxNameLength), nil)
	}
	if v.strictMode && containsMarkup(h.Name) {
		return apperrors.NewValidationError("name", h.Name, "markup is not allowed in names", nil)
	}

	if math.IsNaN(h.Price) || math.IsInf(h.Price, 0) {
		return apperrors.NewValidationError("price", h.Price, "price must be a finite number", nil)
	}
	if h.Price == 0 {
		return apperrors.NewValidationError("price", h.Price, "acquisition price cannot be zero", apperrors.ErrZeroAcquisitionPrice)
	}

	return nil
}

// Unusual reports holdings that pass validation but look like placeholders
// or short positions: non-positive balance or negative price.
func Unusual(h models.Holding) bool {
	return h.Balance <= 0 || h.Price < 0
}

func containsMarkup(input string) bool {
	for _, pattern := range markupPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// SanitizeText removes control characters from free-form text.
func SanitizeText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
