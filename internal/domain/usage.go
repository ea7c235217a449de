package domain

import "github.com/orbital-cloud/usagemeter/internal/domain/credits"

// Message is a unit of usage fetched from the upstream billing API.
// Immutable once fetched; never persisted by the core.
type Message struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	ReportID  *int64 `json:"report_id,omitempty"`
}

// Report is an upstream entity with an authoritative, externally set
// credit cost. Identified by ID; immutable once fetched.
type Report struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CreditCost int64  `json:"credit_cost"`
}

// UsageItem is one row of the consolidated usage listing.
// ReportName is present if and only if the originating message had a
// resolvable report; the serialized form omits it entirely when absent.
type UsageItem struct {
	MessageID   int64          `json:"message_id"`
	Timestamp   string         `json:"timestamp"`
	ReportName  string         `json:"report_name,omitempty"`
	CreditsUsed credits.Amount `json:"credits_used"`
}
