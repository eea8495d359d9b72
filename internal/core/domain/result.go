package domain

// LineResult is the terminal outcome of one statement line: what the
// line was classified as, what happened to it, which folios it minted or
// touched, and a human-readable note.
type LineResult struct {
	Movement BankMovement
	Kind     ProcessKind
	Action   Action
	Folios   []int
	Note     string
}

// Notes reused across the engine so results stay greppable.
const (
	NoteAlreadyReconciled = "already registered and reconciled"
	NoteReconciledNow     = "reconciled now"
	NoteNoCloseForDate    = "no close for date"
	NoteMonthEdge         = "month edge: manual process"
	NoteAutoGenerated     = "auto-generated by the out-leg"
	NotePendingNextDay    = "pending next-day settlement"
	NoteNotOurPayroll     = "no payroll bucket matches"
)

// CountByAction tallies results per terminal action for the job summary.
func CountByAction(results []LineResult) map[Action]int {
	counts := make(map[Action]int, len(results))
	for _, r := range results {
		counts[r.Action]++
	}
	return counts
}
