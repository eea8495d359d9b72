// Package tdc assigns multi-day card deposits to treasury closes. Card
// sales settle next-business-day, so Friday through Sunday closes all
// land in Monday's statement and a single deposit day may cover several
// closes, or one close may be covered by several deposits.
package tdc

import "time"

// Window is the inclusive range of close dates that plausibly feed a
// deposit day.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether day falls inside the window.
func (w Window) Contains(day time.Time) bool {
	return !day.Before(w.From) && !day.After(w.To)
}

// Days returns the number of calendar days the window spans.
func (w Window) Days() int {
	return daysBetween(w.From, w.To) + 1
}

// firstDepositLookback covers holiday runs when no previous deposit date
// anchors the window.
const firstDepositLookback = 7

// WindowForDeposit derives the close window for deposit date d from the
// statement's own deposit dates: everything since the previous deposit
// date, up to yesterday. Holidays stretch the gap and the window follows;
// with no previous deposit the window looks back a full week.
func WindowForDeposit(d time.Time, prev *time.Time) Window {
	to := d.AddDate(0, 0, -1)
	if prev == nil {
		return Window{From: d.AddDate(0, 0, -firstDepositLookback), To: to}
	}
	gap := daysBetween(*prev, d)
	if gap < 1 {
		gap = 1
	}
	return Window{From: to.AddDate(0, 0, -(gap - 1)), To: to}
}

// LegacyWindow is the fixed weekday fallback for callers that cannot
// supply the deposit-date list: Monday settles Friday through Sunday,
// every other day settles yesterday only.
func LegacyWindow(d time.Time) Window {
	if d.Weekday() == time.Monday {
		return Window{From: d.AddDate(0, 0, -3), To: d.AddDate(0, 0, -1)}
	}
	return Window{From: d.AddDate(0, 0, -1), To: d.AddDate(0, 0, -1)}
}

// daysBetween counts whole calendar days from a to b, ignoring the
// time-of-day component.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	at := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bt := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bt.Sub(at) / (24 * time.Hour))
}
