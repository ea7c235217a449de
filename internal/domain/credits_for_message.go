package domain

import "github.com/orbital-cloud/usagemeter/internal/domain/credits"

// CreditsForMessage is the unified credit calculation for any message.
// A resolved report is authoritative; otherwise the cost is estimated
// from the message text.
func CreditsForMessage(m Message, report *Report) (credits.Amount, error) {
	if report != nil {
		return credits.ForReport(report.CreditCost)
	}
	return credits.ForText(m.Text)
}
