package domain

import (
	"math/big"
	"time"
)

// TransactionFilter narrows a transaction list. Zero-valued fields are unset
// and match everything.
type TransactionFilter struct {
	StartDate        *time.Time        `json:"start_date,omitempty"`
	EndDate          *time.Time        `json:"end_date,omitempty"`
	TransactionTypes []TransactionType `json:"transaction_types,omitempty"`
	MinValue         string            `json:"min_value,omitempty"`
	MaxValue         string            `json:"max_value,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f TransactionFilter) IsZero() bool {
	return f.StartDate == nil && f.EndDate == nil &&
		len(f.TransactionTypes) == 0 && f.MinValue == "" && f.MaxValue == ""
}

// Matches reports whether tx passes the filter. Bound evaluation is fail-open:
// a value that cannot be parsed as a decimal never excludes the record, so a
// single malformed row cannot silently erase results from a report.
func (f TransactionFilter) Matches(tx NormalizedTransaction) bool {
	if f.StartDate != nil && tx.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && tx.Timestamp.After(*f.EndDate) {
		return false
	}

	if len(f.TransactionTypes) > 0 {
		found := false
		for _, t := range f.TransactionTypes {
			if tx.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.MinValue != "" {
		if cmp, ok := compareDecimal(tx.Value, f.MinValue); ok && cmp < 0 {
			return false
		}
	}
	if f.MaxValue != "" {
		if cmp, ok := compareDecimal(tx.Value, f.MaxValue); ok && cmp > 0 {
			return false
		}
	}

	return true
}

// compareDecimal compares two decimal strings. ok is false when either side
// fails to parse.
func compareDecimal(a, b string) (int, bool) {
	ra, okA := new(big.Rat).SetString(a)
	rb, okB := new(big.Rat).SetString(b)
	if !okA || !okB {
		return 0, false
	}
	return ra.Cmp(rb), true
}
