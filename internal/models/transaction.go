package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Transaction is a brokerage transaction record as returned by the upstream source.
// The named fields are the ones the cache depends on; anything else the upstream
// sends is kept in Extra so a cached record round-trips without loss.
type Transaction struct {
	TransactionID   string      `json:"transactionId"`
	TransactionDate EpochMillis `json:"transactionDate"`
	TransactionType string      `json:"transactionType"`
	Amount          float64     `json:"amount"`
	Description     string      `json:"description"`

	Extra map[string]json.RawMessage `json:"-"`
}

var transactionKeys = map[string]bool{
	"transactionId":   true,
	"transactionDate": true,
	"transactionType": true,
	"amount":          true,
	"description":     true,
}

// UnmarshalJSON accepts ids and amounts as either JSON strings or numbers.
// A malformed amount decodes as zero; a malformed date is kept verbatim and
// reported invalid by EpochMillis.Time.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("transaction: %w", err)
	}

	*t = Transaction{}
	t.TransactionID = flexString(raw["transactionId"])
	t.TransactionType = flexString(raw["transactionType"])
	t.Description = flexString(raw["description"])
	t.Amount, _ = flexFloat(raw["amount"])
	if v, ok := raw["transactionDate"]; ok {
		if err := t.TransactionDate.UnmarshalJSON(v); err != nil {
			return err
		}
	}

	for k, v := range raw {
		if transactionKeys[k] {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = v
	}
	return nil
}

// MarshalJSON writes the named fields alongside any preserved upstream fields.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+len(transactionKeys))
	for k, v := range t.Extra {
		out[k] = v
	}
	out["transactionId"] = t.TransactionID
	out["transactionDate"] = t.TransactionDate
	out["transactionType"] = t.TransactionType
	out["amount"] = t.Amount
	out["description"] = t.Description
	return json.Marshal(out)
}

// Time returns the transaction date and whether it could be parsed.
func (t Transaction) Time() (time.Time, bool) {
	return t.TransactionDate.Time()
}

// EpochMillis is a transaction date in epoch milliseconds. Upstream sends it
// as a number or a numeric string; the raw text is kept so that malformed
// values survive a cache round trip and are simply skipped by date logic.
type EpochMillis string

// NewEpochMillis converts a time to its epoch-millisecond form.
func NewEpochMillis(t time.Time) EpochMillis {
	return EpochMillis(strconv.FormatInt(t.UnixMilli(), 10))
}

// Millis returns the parsed value and whether it is a valid integer.
func (e EpochMillis) Millis() (int64, bool) {
	s := strings.TrimSpace(string(e))
	if s == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Tolerate float encodings such as 1.7e12
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, false
		}
		ms = int64(f)
	}
	return ms, true
}

// Time returns the date as a time.Time and whether it could be parsed.
func (e EpochMillis) Time() (time.Time, bool) {
	ms, ok := e.Millis()
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("transactionDate: %w", err)
		}
		*e = EpochMillis(s)
		return nil
	}
	*e = EpochMillis(data)
	return nil
}

// MarshalJSON writes valid dates as numbers and anything else as a string.
func (e EpochMillis) MarshalJSON() ([]byte, error) {
	if e == "" {
		return []byte("null"), nil
	}
	if ms, err := strconv.ParseInt(strings.TrimSpace(string(e)), 10, 64); err == nil {
		return []byte(strconv.FormatInt(ms, 10)), nil
	}
	return json.Marshal(string(e))
}

// TransactionPage is one response of the upstream paginated transaction endpoint.
type TransactionPage struct {
	Transactions     []Transaction `json:"Transaction"`
	Marker           string        `json:"marker,omitempty"`
	TotalCount       int           `json:"totalCount,omitempty"`
	MoreTransactions bool          `json:"moreTransactions"`

	// HasTransactions is false when the response carried no Transaction key at all.
	HasTransactions bool `json:"-"`
}

// UnmarshalJSON handles the upstream quirks: Transaction may be a list or a
// single object, totalCount may be a string, moreTransactions is "true"/"false".
func (p *TransactionPage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("transaction page: %w", err)
	}

	*p = TransactionPage{}
	if v, ok := raw["Transaction"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		p.HasTransactions = true
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '[' {
			if err := json.Unmarshal(v, &p.Transactions); err != nil {
				return fmt.Errorf("transaction page: %w", err)
			}
		} else {
			var single Transaction
			if err := json.Unmarshal(v, &single); err != nil {
				return fmt.Errorf("transaction page: %w", err)
			}
			p.Transactions = []Transaction{single}
		}
	}

	p.Marker = flexString(raw["marker"])
	if n, ok := flexFloat(raw["totalCount"]); ok {
		p.TotalCount = int(n)
	}
	p.MoreTransactions = strings.EqualFold(flexString(raw["moreTransactions"]), "true")
	return nil
}

// TransactionCache is the persisted per-account cache file.
type TransactionCache struct {
	Transactions []Transaction `json:"transactions"`
	LastUpdated  *time.Time    `json:"last_updated"`

	// CoveredSince is the start of the window the last complete full fetch covered.
	CoveredSince *time.Time `json:"covered_since,omitempty"`
}

// timestampLayouts are the accepted forms of cache timestamps. Caches written
// by older tooling carry ISO-8601 local times without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON decodes the cache with lenient timestamps. An unparseable
// last_updated or covered_since decodes as nil and never voids the transactions.
func (c *TransactionCache) UnmarshalJSON(data []byte) error {
	var raw struct {
		Transactions []Transaction   `json:"transactions"`
		LastUpdated  json.RawMessage `json:"last_updated"`
		CoveredSince json.RawMessage `json:"covered_since"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("transaction cache: %w", err)
	}

	*c = TransactionCache{Transactions: raw.Transactions}
	if t, ok := ParseTimestamp(flexString(raw.LastUpdated)); ok {
		c.LastUpdated = &t
	}
	if t, ok := ParseTimestamp(flexString(raw.CoveredSince)); ok {
		c.CoveredSince = &t
	}
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// read as local time.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// OldestDate returns the oldest parseable transaction date in the cache.
func (c *TransactionCache) OldestDate() (time.Time, bool) {
	return OldestTransactionDate(c.Transactions)
}

// OldestTransactionDate returns the oldest parseable date among txs.
func OldestTransactionDate(txs []Transaction) (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, tx := range txs {
		d, ok := tx.Time()
		if !ok {
			continue
		}
		if !found || d.Before(oldest) {
			oldest = d
			found = true
		}
	}
	return oldest, found
}

// SortTransactionsNewestFirst sorts by date descending; unparseable dates sort last.
// The sort is stable so records sharing a date keep their relative order.
func SortTransactionsNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		mi, _ := txs[i].TransactionDate.Millis()
		mj, _ := txs[j].TransactionDate.Millis()
		return mi > mj
	})
}

// DedupeTransactions keeps the first occurrence of each id and drops records without one.
func DedupeTransactions(txs []Transaction) []Transaction {
	seen := make(map[string]bool, len(txs))
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.TransactionID == "" || seen[tx.TransactionID] {
			continue
		}
		seen[tx.TransactionID] = true
		out = append(out, tx)
	}
	return out
}

// flexString decodes a JSON string, number or bool into its textual form.
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	return string(raw)
}

// flexFloat decodes a JSON number or numeric string.
func flexFloat(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(flexString(raw))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
