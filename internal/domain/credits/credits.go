// Package credits implements the billing formula for usage messages.
//
// Rules:
//   - 1 token ≈ 4 characters
//   - base rate: 40 credits per 100 tokens
//   - round half-up to 2 decimal places
//   - minimum 1.00 credit for text messages (applied after rounding),
//     no minimum for report-backed messages
package credits

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"unicode/utf8"
)

// ErrInvalidInput signals malformed input to a credit calculation.
var ErrInvalidInput = errors.New("invalid input")

// Billing formula constants.
const (
	CharactersPerToken = 4
	BaseModelRate      = 40
)

// MinimumText is the floor applied to text-based estimates.
const MinimumText Amount = 100

// ForText estimates the credit cost of a free-text message.
// Every character counts: letters, spaces, punctuation, digits.
// The 1.00 minimum is applied after rounding, so an empty string
// yields exactly 1.00.
func ForText(text string) (Amount, error) {
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("text is not valid UTF-8: %w", ErrInvalidInput)
	}

	charCount := utf8.RuneCountInString(text)
	estimatedTokens := float64(charCount) / CharactersPerToken
	rawCredits := estimatedTokens / 100 * BaseModelRate

	a := roundHalfUp(rawCredits)
	if a < MinimumText {
		a = MinimumText
	}
	return a, nil
}

// wordCharRegex matches everything that is not a word character.
// A "word" is a continual sequence of letters plus ' and -.
var wordCharRegex = regexp.MustCompile(`[^a-zA-Z'-]`)

// ForTextWords is the stricter estimation variant: the text is first
// stripped to word characters (ASCII letters, apostrophe, hyphen) and
// the same formula is applied. Diverges from ForText whenever the input
// contains digits, whitespace, or other punctuation.
func ForTextWords(text string) (Amount, error) {
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("text is not valid UTF-8: %w", ErrInvalidInput)
	}
	return ForText(wordCharRegex.ReplaceAllString(text, ""))
}

// ForReport returns the authoritative cost of a report. No minimum is
// applied: a zero-cost report legitimately yields 0.00.
func ForReport(creditCost int64) (Amount, error) {
	if creditCost < 0 {
		return 0, fmt.Errorf("credit cost must be non-negative, got %d: %w", creditCost, ErrInvalidInput)
	}
	return Amount(creditCost * 100), nil
}

// roundHalfUp converts whole credits to an Amount, rounding ties away
// from zero (not banker's rounding). Inputs are never negative.
func roundHalfUp(credits float64) Amount {
	return Amount(math.Floor(credits*100 + 0.5))
}
