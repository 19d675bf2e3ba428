// Package budget groups scheduled amounts by category and compares the
// total against a spending limit.
package budget

import (
	"pocketbook/internal/core"
)

// Palette assigns bucket colors by bucket index, cycling.
var Palette = []string{
	"#FFB085", "#85C1E9", "#A3E4D7", "#F7DC6F", "#D7BDE2",
	"#F5B7B1", "#FFD93F", "#76D7C4", "#F8C471", "#D2B4DE",
}

// DefaultLimit is the limit offered when the user first sets one.
var DefaultLimit = core.Money{Cents: 500000}

// Record is anything with a type, a category and an amount.
type Record interface {
	RecordType() core.EntryType
	RecordCategory() string
	RecordAmount() core.Money
}

type Bucket struct {
	Category string
	Total    core.Money
	Color    string
}

// Summary is a per-category breakdown of one entry type.
type Summary struct {
	Type       core.EntryType
	Buckets    []Bucket
	GrandTotal core.Money
}

// Aggregate sums records of exactly typeFilter by category. Buckets keep
// the order in which each category first appears in records.
func Aggregate[R Record](records []R, typeFilter core.EntryType) Summary {
	s := Summary{Type: typeFilter}
	index := make(map[string]int)
	for _, r := range records {
		if r.RecordType() != typeFilter {
			continue
		}
		cat := r.RecordCategory()
		i, ok := index[cat]
		if !ok {
			i = len(s.Buckets)
			index[cat] = i
			s.Buckets = append(s.Buckets, Bucket{
				Category: cat,
				Color:    Palette[i%len(Palette)],
			})
		}
		s.Buckets[i].Total = s.Buckets[i].Total.Add(r.RecordAmount())
	}
	for _, b := range s.Buckets {
		s.GrandTotal = s.GrandTotal.Add(b.Total)
	}
	return s
}

// Totals returns the bucket totals keyed by category.
func (s Summary) Totals() map[string]core.Money {
	out := make(map[string]core.Money, len(s.Buckets))
	for _, b := range s.Buckets {
		out[b.Category] = b.Total
	}
	return out
}

type StatusKind int

const (
	Unset StatusKind = iota
	Safe
	Exceeded
)

func (k StatusKind) String() string {
	switch k {
	case Safe:
		return "safe"
	case Exceeded:
		return "exceeded"
	default:
		return "unset"
	}
}

// Status is the outcome of comparing a total against a limit. Amount is
// the headroom when Safe and the overrun when Exceeded.
type Status struct {
	Kind   StatusKind
	Amount core.Money
}

// BudgetStatus compares grandTotal with limit. A limit of zero or less
// means no limit is configured. Reaching the limit exactly is Safe.
func BudgetStatus(grandTotal, limit core.Money) Status {
	switch {
	case limit.Cents <= 0:
		return Status{Kind: Unset}
	case grandTotal.Cents > limit.Cents:
		return Status{Kind: Exceeded, Amount: grandTotal.Sub(limit)}
	default:
		return Status{Kind: Safe, Amount: limit.Sub(grandTotal)}
	}
}
