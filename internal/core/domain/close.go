package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CloseInvoice is one invoice referenced by a daily close.
type CloseInvoice struct {
	Series string
	Number string
	Amount decimal.Decimal
}

// DailyClose is the treasury summary for one sales day: the itemised
// invoices issued that day, the global catch-all invoice, and the
// cash/card/other subtotals. The close date is authoritative; loaders
// fall back to sheet-index-as-day-of-month when the cell is blank.
type DailyClose struct {
	Date       time.Time
	Branch     string
	Individual []CloseInvoice
	Global     CloseInvoice
	CashTotal  decimal.Decimal
	CardTotal  decimal.Decimal
	OtherTotal decimal.Decimal
}

// IndividualTotal sums the itemised invoices of the close.
func (c *DailyClose) IndividualTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range c.Individual {
		total = total.Add(inv.Amount)
	}
	return total
}

// CloseByDate returns the close whose date falls on day, or nil.
func CloseByDate(closes []DailyClose, day time.Time) *DailyClose {
	y, m, d := day.Date()
	for i := range closes {
		cy, cm, cd := closes[i].Date.Date()
		if cy == y && cm == m && cd == d {
			return &closes[i]
		}
	}
	return nil
}

// ClosesInWindow returns the closes with from <= date <= to, ordered by
// date ascending.
func ClosesInWindow(closes []DailyClose, from, to time.Time) []DailyClose {
	var out []DailyClose
	for _, c := range closes {
		if c.Date.Before(from) || c.Date.After(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
