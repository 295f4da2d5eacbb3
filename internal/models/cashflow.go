package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashFlowEntry is one transaction that moved cash in or out of the account.
type CashFlowEntry struct {
	TransactionID string          `json:"transaction_id"`
	Date          time.Time       `json:"date"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Impact        decimal.Decimal `json:"impact"`
}

// DailyCashFlow is the net external cash flow for one calendar day.
type DailyCashFlow struct {
	Date             time.Time       `json:"date"`
	DailyFlow        decimal.Decimal `json:"daily_flow"`
	CumulativeFlow   decimal.Decimal `json:"cumulative_flow"`
	TransactionCount int             `json:"transaction_count"`
	Entries          []CashFlowEntry `json:"entries,omitempty"`
}

// CashFlowHistory covers every day in the requested window, oldest first.
type CashFlowHistory struct {
	AccountID string          `json:"account_id"`
	Days      []DailyCashFlow `json:"days"`
	NetFlow   decimal.Decimal `json:"net_flow"`
	Processed int             `json:"processed"`
	Ignored   int             `json:"ignored"`
}

// TransactionSummary describes the transactions in a window.
type TransactionSummary struct {
	TotalTransactions int             `json:"total_transactions"`
	DateRange         string          `json:"date_range"`
	TransactionTypes  map[string]int  `json:"transaction_types"`
	OldestDate        *time.Time      `json:"oldest_date,omitempty"`
	NewestDate        *time.Time      `json:"newest_date,omitempty"`
	NetAmount         decimal.Decimal `json:"net_amount"`
}
