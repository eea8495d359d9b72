// Package sidechannel reads the files that feed a reconciliation job
// beside the database: the bank-statement workbook, the treasury
// daily-close workbook, the payroll workbook and the tax-payment PDFs.
// Readers are pure functions returning the engine's value objects; the
// Loader wraps them with a parsed-file cache and loads every source of a
// job concurrently.
//
// Side-channel data is optional by design. A missing or unreadable file
// degrades to a warning plus a nil value, and the processors that needed
// it hold their lines. Only the bank statement is mandatory: without it
// there is no job.
package sidechannel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

// Sources names the files of one job. Empty fields are absent sources.
type Sources struct {
	// Statement is the bank-statement workbook. Mandatory.
	Statement string

	// Closes is the treasury daily-close workbook for the period.
	Closes string

	// Payroll is the payroll workbook for the period.
	Payroll string

	// Federal lists the SAT acknowledgement PDFs (retentions return,
	// main return, per-supplier VAT retentions).
	Federal []string

	// State is the state payroll-tax payment slip PDF.
	State string

	// Social is the social-security SUA summary PDF.
	Social string
}

// Bundle is everything LoadAll parsed for one job, plus the warnings
// accumulated on the way. Absent sources leave nil fields.
type Bundle struct {
	Statement []domain.BankMovement
	Closes    []domain.DailyClose
	Payroll   *domain.Payroll
	Taxes     *domain.TaxBundle
	Warnings  []string
}

// Loader parses side-channel files with an LRU cache in front, so a
// long-lived process re-running jobs over the same period does not
// re-read unchanged workbooks.
type Loader struct {
	reg *config.Registry
	log logrus.FieldLogger

	statements *Cache[statementParse]
	closes     *Cache[closeParse]
	payrolls   *Cache[payrollParse]
	pdfTexts   *Cache[string]
}

// cacheSize bounds each per-kind cache. A month of daily runs touches a
// handful of files; 32 is generous.
const cacheSize = 32

// NewLoader builds a loader over the account registry.
func NewLoader(reg *config.Registry, log logrus.FieldLogger) (*Loader, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	statements, err := NewCache[statementParse](cacheSize)
	if err != nil {
		return nil, err
	}
	closes, err := NewCache[closeParse](cacheSize)
	if err != nil {
		return nil, err
	}
	payrolls, err := NewCache[payrollParse](cacheSize)
	if err != nil {
		return nil, err
	}
	pdfTexts, err := NewCache[string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Loader{
		reg:        reg,
		log:        log,
		statements: statements,
		closes:     closes,
		payrolls:   payrolls,
		pdfTexts:   pdfTexts,
	}, nil
}

// LoadAll reads every named source concurrently. period supplies the
// year and month for close sheets whose date cell is blank. A statement
// error is fatal; every other source degrades to warnings.
func (l *Loader) LoadAll(ctx context.Context, src Sources, period time.Time) (*Bundle, error) {
	if src.Statement == "" {
		return nil, fmt.Errorf("no statement workbook named")
	}

	b := &Bundle{}
	var (
		stmtWarn, closeWarn, payrollWarn, taxWarn []string
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		parsed, err := l.statements.Load(src.Statement, func(path string) (statementParse, error) {
			movements, warnings, err := ReadStatement(path, l.reg)
			return statementParse{movements: movements, warnings: warnings}, err
		})
		if err != nil {
			return fmt.Errorf("statement workbook %s: %w", src.Statement, err)
		}
		// Downstream stages stamp indices and kinds onto the slice;
		// hand out a copy so the cached parse stays pristine.
		b.Statement = append([]domain.BankMovement(nil), parsed.movements...)
		stmtWarn = parsed.warnings
		return nil
	})

	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		if src.Closes == "" {
			closeWarn = append(closeWarn, "no daily-close workbook named")
			return nil
		}
		parsed, err := l.closes.Load(src.Closes, readCloseSheets)
		if err != nil {
			closeWarn = append(closeWarn, fmt.Sprintf("daily-close workbook %s: %v", src.Closes, err))
			return nil
		}
		closes, warnings := parsed.resolve(period)
		b.Closes = closes
		closeWarn = append(closeWarn, warnings...)
		return nil
	})

	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		if src.Payroll == "" {
			return nil
		}
		parsed, err := l.payrolls.Load(src.Payroll, func(path string) (payrollParse, error) {
			payroll, warnings, err := ReadPayroll(path)
			return payrollParse{payroll: payroll, warnings: warnings}, err
		})
		if err != nil {
			payrollWarn = append(payrollWarn, fmt.Sprintf("payroll workbook %s: %v", src.Payroll, err))
			return nil
		}
		// Cashed-check matching consumes bucket state; clone so the
		// cached parse never carries a previous job's consumption.
		b.Payroll = clonePayroll(parsed.payroll)
		payrollWarn = append(payrollWarn, parsed.warnings...)
		return nil
	})

	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		taxes, warnings := l.loadTaxes(src)
		b.Taxes = taxes
		taxWarn = warnings
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Fixed source order keeps warning output stable across runs.
	b.Warnings = append(b.Warnings, stmtWarn...)
	b.Warnings = append(b.Warnings, closeWarn...)
	b.Warnings = append(b.Warnings, payrollWarn...)
	b.Warnings = append(b.Warnings, taxWarn...)

	l.log.WithFields(logrus.Fields{
		"lines":    len(b.Statement),
		"closes":   len(b.Closes),
		"payroll":  b.Payroll != nil,
		"taxes":    b.Taxes != nil,
		"warnings": len(b.Warnings),
	}).Info("Side-channel sources loaded")
	return b, nil
}

// loadTaxes extracts and parses every tax PDF. The bundle is nil when no
// tax source was named or none survived extraction.
func (l *Loader) loadTaxes(src Sources) (*domain.TaxBundle, []string) {
	var warnings []string
	bundle := &domain.TaxBundle{}

	var federalTexts []string
	for _, path := range src.Federal {
		text, err := l.pdfTexts.Load(path, ExtractText)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("federal PDF %s: %v", path, err))
			continue
		}
		federalTexts = append(federalTexts, text)
	}
	if len(federalTexts) > 0 {
		federal, fws := ParseFederalDocs(federalTexts)
		bundle.Federal = federal
		warnings = append(warnings, fws...)
	}

	if src.State != "" {
		text, err := l.pdfTexts.Load(src.State, ExtractText)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("state PDF %s: %v", src.State, err))
		} else {
			bundle.State = ParseStateSlip(text)
		}
	}

	if src.Social != "" {
		text, err := l.pdfTexts.Load(src.Social, ExtractText)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("social-security PDF %s: %v", src.Social, err))
		} else {
			bundle.Social = ParseSocialSummary(text)
		}
	}

	if bundle.Federal == nil && bundle.State == nil && bundle.Social == nil {
		return nil, warnings
	}
	return bundle, warnings
}

// statementParse is the cached form of one statement workbook.
type statementParse struct {
	movements []domain.BankMovement
	warnings  []string
}

// payrollParse is the cached form of one payroll workbook.
type payrollParse struct {
	payroll  *domain.Payroll
	warnings []string
}

// clonePayroll copies a payroll deep enough that bucket matching on the
// copy never touches the original.
func clonePayroll(p *domain.Payroll) *domain.Payroll {
	if p == nil {
		return nil
	}
	out := *p
	out.Perceptions = append([]domain.PayrollConcept(nil), p.Perceptions...)
	out.Deductions = append([]domain.PayrollConcept(nil), p.Deductions...)
	out.Secondaries = append([]domain.PayrollSecondary(nil), p.Secondaries...)
	return &out
}

// Discover fills the conventional file names under dir for sources not
// already named: statement.xlsx, closes.xlsx, payroll.xlsx, state.pdf,
// social.pdf and federal_*.pdf. Missing files stay absent.
func Discover(dir string, src Sources) Sources {
	pick := func(current, name string) string {
		if current != "" {
			return current
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return ""
		}
		return path
	}
	src.Statement = pick(src.Statement, "statement.xlsx")
	src.Closes = pick(src.Closes, "closes.xlsx")
	src.Payroll = pick(src.Payroll, "payroll.xlsx")
	src.State = pick(src.State, "state.pdf")
	src.Social = pick(src.Social, "social.pdf")
	if len(src.Federal) == 0 {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if strings.HasPrefix(name, "federal_") && strings.HasSuffix(name, ".pdf") {
					src.Federal = append(src.Federal, filepath.Join(dir, name))
				}
			}
		}
	}
	return src
}
