package tdc

import (
	"github.com/shopspring/decimal"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// maxCombosPerSize bounds the exact-phase subset search: per subset size,
// at most this many full combinations are evaluated before giving up.
const maxCombosPerSize = 10000

// Deposit is one card deposit awaiting assignment. Virtual deposits are
// split remainders; they keep the parent's statement index so every DB
// effect is attributed to one statement line.
type Deposit struct {
	SourceIndex int
	Amount      decimal.Decimal
	Virtual     bool
}

// Assignment pairs one close with the deposits covering its card total.
// Shortfall is nonzero when the deposits ran out before the target was
// reached; callers surface it as a warning.
type Assignment struct {
	Close     domain.DailyClose
	Deposits  []Deposit
	Shortfall decimal.Decimal
}

// Result is the outcome of assigning a deposit day.
type Result struct {
	Assignments []Assignment

	// Leftovers are deposits no close claimed; they become
	// bank-adjustment movements.
	Leftovers []Deposit

	// Exact is true when phase 1 matched every close target by subset
	// sum; false means the sequential-with-split fallback ran.
	Exact bool
}

// Assign matches the day's card deposits against the close targets.
// Phase 1 searches for disjoint deposit subsets whose sums hit each
// target exactly (within tol) and commits only when every target is
// matched. Otherwise phase 2 consumes deposits in statement order,
// splitting a deposit whenever it would overshoot the current target.
func Assign(closes []domain.DailyClose, deposits []Deposit, tol decimal.Decimal) Result {
	if len(closes) == 0 {
		return Result{Leftovers: deposits}
	}
	if r, ok := assignExact(closes, deposits, tol); ok {
		return r
	}
	return assignSequential(closes, deposits, tol)
}

// assignExact is phase 1. All-or-nothing: a single unmatched target
// discards every tentative assignment.
func assignExact(closes []domain.DailyClose, deposits []Deposit, tol decimal.Decimal) (Result, bool) {
	avail := make([]int, len(deposits))
	for i := range deposits {
		avail[i] = i
	}

	assignments := make([]Assignment, 0, len(closes))
	for _, c := range closes {
		if c.CardTotal.LessThanOrEqual(tol) {
			assignments = append(assignments, Assignment{Close: c, Shortfall: domain.Zero})
			continue
		}
		subset := findSubset(deposits, avail, c.CardTotal, tol)
		if subset == nil {
			return Result{}, false
		}

		picked := make([]Deposit, 0, len(subset))
		taken := make(map[int]bool, len(subset))
		for _, idx := range subset {
			picked = append(picked, deposits[idx])
			taken[idx] = true
		}
		assignments = append(assignments, Assignment{Close: c, Deposits: picked, Shortfall: domain.Zero})

		next := avail[:0]
		for _, idx := range avail {
			if !taken[idx] {
				next = append(next, idx)
			}
		}
		avail = next
	}

	var leftovers []Deposit
	for _, idx := range avail {
		leftovers = append(leftovers, deposits[idx])
	}
	return Result{Assignments: assignments, Leftovers: leftovers, Exact: true}, true
}

// findSubset looks for a subset of the available deposits summing to
// target within tol, preferring larger subsets (whole set first, then
// size n-1 down to single deposits).
func findSubset(deposits []Deposit, avail []int, target, tol decimal.Decimal) []int {
	for size := len(avail); size >= 1; size-- {
		budget := maxCombosPerSize
		if s := subsetOfSize(deposits, avail, size, target, tol, &budget); s != nil {
			return s
		}
	}
	return nil
}

func subsetOfSize(deposits []Deposit, avail []int, size int, target, tol decimal.Decimal, budget *int) []int {
	ceiling := target.Add(tol)
	pick := make([]int, 0, size)

	var rec func(start int, sum decimal.Decimal) []int
	rec = func(start int, sum decimal.Decimal) []int {
		if len(pick) == size {
			*budget--
			if sum.Sub(target).Abs().LessThanOrEqual(tol) {
				out := make([]int, size)
				copy(out, pick)
				return out
			}
			return nil
		}
		for i := start; i < len(avail); i++ {
			if *budget <= 0 {
				return nil
			}
			// Not enough deposits left to reach the requested size.
			if len(avail)-i < size-len(pick) {
				return nil
			}
			next := sum.Add(deposits[avail[i]].Amount)
			if next.GreaterThan(ceiling) {
				continue
			}
			pick = append(pick, avail[i])
			if out := rec(i+1, next); out != nil {
				return out
			}
			pick = pick[:len(pick)-1]
		}
		return nil
	}
	return rec(0, domain.Zero)
}

// assignSequential is phase 2. Deposits are consumed in input order; one
// that would overshoot the current target is split, the fitting portion
// assigned and the remainder re-queued as a virtual child for the next
// close. Whatever survives every close is a leftover.
func assignSequential(closes []domain.DailyClose, deposits []Deposit, tol decimal.Decimal) Result {
	queue := make([]Deposit, len(deposits))
	copy(queue, deposits)

	assignments := make([]Assignment, 0, len(closes))
	qi := 0
	for _, c := range closes {
		remaining := c.CardTotal
		var used []Deposit

		for remaining.GreaterThan(tol) && qi < len(queue) {
			d := queue[qi]
			if d.Amount.LessThanOrEqual(remaining.Add(tol)) {
				used = append(used, d)
				remaining = remaining.Sub(d.Amount)
				qi++
				continue
			}

			// Split: the fitting portion settles this close, the rest
			// waits for the next one under the same statement line.
			used = append(used, Deposit{
				SourceIndex: d.SourceIndex,
				Amount:      remaining,
				Virtual:     true,
			})
			queue[qi] = Deposit{
				SourceIndex: d.SourceIndex,
				Amount:      d.Amount.Sub(remaining),
				Virtual:     true,
			}
			remaining = domain.Zero
		}

		shortfall := domain.Zero
		if remaining.GreaterThan(tol) {
			shortfall = remaining
		}
		assignments = append(assignments, Assignment{Close: c, Deposits: used, Shortfall: shortfall})
	}

	var leftovers []Deposit
	for ; qi < len(queue); qi++ {
		leftovers = append(leftovers, queue[qi])
	}
	return Result{Assignments: assignments, Leftovers: leftovers}
}
