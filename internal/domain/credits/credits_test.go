package credits

import (
	"errors"
	"strings"
	"testing"
)

func TestForText_Formula(t *testing.T) {
	// For 4*n characters the estimate is n tokens -> n*0.4 credits,
	// floored at 1.00 after rounding.
	tests := []struct {
		n    int
		want string
	}{
		{0, "1.00"},
		{1, "1.00"},
		{2, "1.00"},
		{3, "1.20"},
		{10, "4.00"},
		{100, "40.00"},
		{250, "100.00"},
	}

	for _, tc := range tests {
		text := strings.Repeat("a", 4*tc.n)
		got, err := ForText(text)
		if err != nil {
			t.Fatalf("ForText(4*%d chars): unexpected error: %v", tc.n, err)
		}
		if got.String() != tc.want {
			t.Errorf("ForText(4*%d chars) = %s, want %s", tc.n, got, tc.want)
		}
	}
}

func TestForText_MinimumAppliedAfterRounding(t *testing.T) {
	for _, text := range []string{"", "a", "Hi", "abc"} {
		got, err := ForText(text)
		if err != nil {
			t.Fatalf("ForText(%q): unexpected error: %v", text, err)
		}
		if got != 100 {
			t.Errorf("ForText(%q) = %s, want 1.00", text, got)
		}
	}
}

func TestForText_CountsAllCharacters(t *testing.T) {
	// 40 characters including spaces, punctuation, and digits:
	// 10 tokens -> 4.00 credits.
	text := "a b,c.d!e?f g1h2i3j k l m n o p q r s t"
	if len(text) != 39 {
		t.Fatalf("fixture drifted: len=%d", len(text))
	}
	got, err := ForText(text + "!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "4.00" {
		t.Errorf("ForText = %s, want 4.00", got)
	}
}

func TestForText_CountsRunesNotBytes(t *testing.T) {
	// 4 multi-byte characters estimate 1 token, same as 4 ASCII ones.
	got, err := ForText(strings.Repeat("é", 29))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := ForText(strings.Repeat("e", 29))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("multi-byte ForText = %s, ASCII ForText = %s", got, want)
	}
}

func TestForText_RoundHalfUp(t *testing.T) {
	// 25 characters: 6.25 tokens -> 2.5 credits exactly. 45 characters:
	// 11.25 tokens -> 4.5 credits. Both are already 2-decimal values;
	// 2.5 cents ties appear at 1/8 token granularity which the
	// 4-chars-per-token formula cannot produce, so half-up only shows in
	// the interior arithmetic. Assert the documented outputs.
	tests := []struct {
		chars int
		want  string
	}{
		{25, "2.50"},
		{45, "4.50"},
		{13, "1.30"},
	}
	for _, tc := range tests {
		got, err := ForText(strings.Repeat("x", tc.chars))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.String() != tc.want {
			t.Errorf("ForText(%d chars) = %s, want %s", tc.chars, got, tc.want)
		}
	}
}

func TestForText_InvalidUTF8(t *testing.T) {
	_, err := ForText(string([]byte{0xff, 0xfe}))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestForTextWords_StripsNonWordCharacters(t *testing.T) {
	// "Hello, world! 123" -> "Helloworld" (10 chars) vs 17 raw chars.
	raw, err := ForText("Hello, world! 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	words, err := ForTextWords("Hello, world! 123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantWords, err := ForText("Helloworld")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if words != wantWords {
		t.Errorf("ForTextWords = %s, want %s", words, wantWords)
	}
	if raw == words {
		t.Error("expected raw and word variants to diverge on punctuated input")
	}
}

func TestForTextWords_KeepsApostropheAndHyphen(t *testing.T) {
	got, err := ForTextWords("it's-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := ForText("it's-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("ForTextWords = %s, want %s (no characters should be stripped)", got, want)
	}
}

func TestForTextWords_EqualsForTextOnPureLetters(t *testing.T) {
	text := strings.Repeat("abcd", 30)
	raw, err := ForText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	words, err := ForTextWords(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != words {
		t.Errorf("variants diverged on pure letters: %s vs %s", raw, words)
	}
}

func TestForReport(t *testing.T) {
	tests := []struct {
		cost int64
		want string
	}{
		{0, "0.00"}, // no minimum for reports
		{25, "25.00"},
		{1, "1.00"},
	}
	for _, tc := range tests {
		got, err := ForReport(tc.cost)
		if err != nil {
			t.Fatalf("ForReport(%d): unexpected error: %v", tc.cost, err)
		}
		if got.String() != tc.want {
			t.Errorf("ForReport(%d) = %s, want %s", tc.cost, got, tc.want)
		}
	}
}

func TestForReport_NegativeCost(t *testing.T) {
	_, err := ForReport(-1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
