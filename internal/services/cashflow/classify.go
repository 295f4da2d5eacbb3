// Package cashflow derives external cash movements from brokerage
// transaction history.
package cashflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/holdfast/internal/models"
)

// Transaction types that move cash into or out of the account.
var cashFlowTypes = []string{
	"dividend",
	"interest",
	"funds received",
	"automated payment",
	"withdrawal",
	"deposit",
	"fee",
	"misc",
}

// Descriptions of internal sweeps between the cash and margin sides.
var neutralDescriptions = []string{
	"trnsfr cash to margin",
	"trnsfr margin to cash",
}

// Trades only convert between cash and positions.
var neutralTypes = []string{
	"bought",
	"sold",
}

// Impact is the outcome of classifying one transaction.
type Impact struct {
	Amount decimal.Decimal
	Known  bool // false when the type matched no rule and counted by default
}

// ClassifyImpact returns how much of the transaction's amount is external
// cash flow. Trades and internal transfers are neutral (zero); external
// movements count at their signed amount. Unrecognised types count as cash
// flow with Known=false.
func ClassifyImpact(tx models.Transaction) Impact {
	amount := decimal.NewFromFloat(tx.Amount)
	typ := strings.ToLower(tx.TransactionType)
	desc := strings.ToLower(tx.Description)

	if strings.Contains(desc, "ach") || strings.Contains(typ, "online transfer") {
		if containsAny(desc, "deposit", "credit", "debit", "withdrawal") {
			return Impact{Amount: amount, Known: true}
		}
	}

	if containsAny(desc, neutralDescriptions...) {
		return Impact{Amount: decimal.Zero, Known: true}
	}

	// A transfer that is not ACH is a margin/cash movement
	if strings.Contains(typ, "transfer") {
		return Impact{Amount: decimal.Zero, Known: true}
	}

	if containsAny(typ, neutralTypes...) {
		return Impact{Amount: decimal.Zero, Known: true}
	}

	if containsAny(typ, cashFlowTypes...) {
		return Impact{Amount: amount, Known: true}
	}

	return Impact{Amount: amount, Known: false}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
