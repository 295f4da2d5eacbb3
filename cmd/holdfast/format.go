package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/holdfast/internal/models"
)

const displayCurrency = money.USD

const dateFormat = "01/02/2006"

// formatMoney renders an amount in the display currency, e.g. "$1,234.56".
func formatMoney(d decimal.Decimal) string {
	cur := *money.New(0, displayCurrency).Currency()
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// formatSignedMoney prefixes positive amounts with "+".
func formatSignedMoney(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + formatMoney(d)
	}
	return formatMoney(d)
}

func formatFloatMoney(f float64) string {
	return formatMoney(decimal.NewFromFloat(f))
}

// formatChain renders a chain as "TQQQ -> QQQ (3.00x) -> AAPL (0.30x)".
func formatChain(chain []models.ChainLink) string {
	parts := make([]string, len(chain))
	for i, link := range chain {
		if i == 0 {
			parts[i] = link.Symbol
			continue
		}
		parts[i] = fmt.Sprintf("%s (%.2fx)", link.Symbol, link.Factor)
	}
	return strings.Join(parts, " -> ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderTransactions(w io.Writer, txs []models.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tID\tDESCRIPTION")
	for _, tx := range txs {
		date := "invalid"
		if d, ok := tx.Time(); ok {
			date = d.Format(dateFormat)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, tx.TransactionType,
			formatFloatMoney(tx.Amount), tx.TransactionID, tx.Description)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d transactions\n", len(txs))
}

func renderSummary(w io.Writer, s *models.TransactionSummary) {
	fmt.Fprintf(w, "Transactions: %d\n", s.TotalTransactions)
	fmt.Fprintf(w, "Date range:   %s\n", s.DateRange)
	fmt.Fprintf(w, "Net amount:   %s\n", formatSignedMoney(s.NetAmount))
	if len(s.TransactionTypes) == 0 {
		return
	}

	types := make([]string, 0, len(s.TransactionTypes))
	for t := range s.TransactionTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		a, b := types[i], types[j]
		if s.TransactionTypes[a] != s.TransactionTypes[b] {
			return s.TransactionTypes[a] > s.TransactionTypes[b]
		}
		return a < b
	})

	fmt.Fprintln(w)
	tw := newTable(w)
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%d\n", t, s.TransactionTypes[t])
	}
	tw.Flush()
}

func renderCashFlow(w io.Writer, h *models.CashFlowHistory) {
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tFLOW\tCUMULATIVE\tCOUNT")
	for _, day := range h.Days {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", day.Date.Format(dateFormat),
			formatSignedMoney(day.DailyFlow), formatSignedMoney(day.CumulativeFlow), day.TransactionCount)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nNet flow: %s (%d cash flows, %d ignored)\n", formatSignedMoney(h.NetFlow), h.Processed, h.Ignored)
}

func renderConcentrations(w io.Writer, items []models.ConcentrationItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No exposure")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "UNDERLYING\tEXPOSURE\tPERCENT\tVIA")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f%%\t%s\n", item.Underlying, formatFloatMoney(item.TotalExposure),
			item.Percentage, strings.Join(item.ContributingSymbols(), ", "))
	}
	tw.Flush()
}

func renderChains(w io.Writer, symbol string, chains [][]models.ChainLink, exposures []models.Exposure) {
	fmt.Fprintf(w, "%s\n", symbol)
	for _, chain := range chains {
		fmt.Fprintf(w, "  %s\n", formatChain(chain))
	}
	if len(exposures) > 0 {
		fmt.Fprintln(w, "  resolves to:")
		for _, e := range exposures {
			fmt.Fprintf(w, "    %s %.4fx\n", e.Underlying, e.Factor)
		}
	}
}
