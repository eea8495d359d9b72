// Package report renders the outcome of a reconciliation job for
// operators: a JSON execution log for the archive and an Excel results
// workbook for review. Reports are write-only; nothing in the engine
// reads them back.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/dispatch"
)

// Writer renders job results under the configured logs and reports
// directories. Directories are created on first write.
type Writer struct {
	logsDir    string
	reportsDir string
	log        logrus.FieldLogger
}

// NewWriter builds a writer over the job paths.
func NewWriter(paths config.PathsConfig, log logrus.FieldLogger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{
		logsDir:    paths.Logs,
		reportsDir: paths.Reports,
		log:        log.WithField("component", "report"),
	}
}

// fileStem names a job's artifacts: the run window plus the job id, so
// re-runs over the same window never overwrite each other.
func fileStem(res *dispatch.JobResult) string {
	return fmt.Sprintf("run_%s_%s_%s",
		res.From.Format("20060102"), res.To.Format("20060102"), res.ID)
}

// jobLog is the JSON shape of one execution log.
type jobLog struct {
	ID          string         `json:"id"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	DryRun      bool           `json:"dry_run"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Summary     map[string]int `json:"summary"`
	Lines       []lineLog      `json:"lines"`
	Warnings    []string       `json:"warnings,omitempty"`
	Validations []string       `json:"validations,omitempty"`
	PlanErrors  []string       `json:"plan_errors,omitempty"`
}

// lineLog is one statement line's outcome. Amounts stay decimal strings
// so the log never loses cents to float rendering.
type lineLog struct {
	Date        string `json:"date"`
	Sheet       string `json:"sheet,omitempty"`
	Bank        string `json:"bank"`
	Account     string `json:"account"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
	Kind        string `json:"kind"`
	Action      string `json:"action"`
	Folios      []int  `json:"folios,omitempty"`
	Note        string `json:"note,omitempty"`
}

// WriteJSON writes the execution log, one file per job, and returns its
// path.
func (w *Writer) WriteJSON(res *dispatch.JobResult) (string, error) {
	view := jobLog{
		ID:          res.ID,
		From:        res.From.Format("2006-01-02"),
		To:          res.To.Format("2006-01-02"),
		DryRun:      res.DryRun,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Summary:     make(map[string]int, len(res.Summary)),
		Lines:       make([]lineLog, 0, len(res.Results)),
		Warnings:    res.Warnings,
		Validations: res.Validations,
		PlanErrors:  res.PlanErrors,
	}
	for action, n := range res.Summary {
		view.Summary[string(action)] = n
	}
	for _, r := range res.Results {
		mv := r.Movement
		view.Lines = append(view.Lines, lineLog{
			Date:        mv.Date.Format("2006-01-02"),
			Sheet:       mv.Sheet,
			Bank:        mv.Bank,
			Account:     mv.Account,
			Description: mv.Description,
			Amount:      mv.Amount.StringFixed(2),
			Direction:   mv.Direction.String(),
			Kind:        string(r.Kind),
			Action:      string(r.Action),
			Folios:      r.Folios,
			Note:        r.Note,
		})
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode execution log: %w", err)
	}
	if err := os.MkdirAll(w.logsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.logsDir, fileStem(res)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	w.log.WithFields(logrus.Fields{
		"job":   res.ID,
		"path":  path,
		"lines": len(view.Lines),
	}).Info("Execution log written")
	return path, nil
}

// foliosText renders the minted folios of one line for display.
func foliosText(folios []int) string {
	if len(folios) == 0 {
		return ""
	}
	parts := make([]string, len(folios))
	for i, f := range folios {
		parts[i] = strconv.Itoa(f)
	}
	return strings.Join(parts, ", ")
}
