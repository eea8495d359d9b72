package sidechannel

import (
	"bytes"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rmorelos/reconbank/internal/core/domain"
)

// ExtractText pulls the plain text out of a PDF, pages concatenated.
// Layout is not preserved; the parsers below scan labels on flat text.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

// foldText uppercases and strips accents so labels match however the
// PDF spells them ("Declaración" and "DECLARACION" alike). Values read
// off the text (supplier names, RFCs) come back folded too.
func foldText(s string) string {
	stripped, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), s)
	if err != nil {
		stripped = s
	}
	return strings.ToUpper(stripped)
}

var (
	amountPattern = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]{1,2})?`)
	yearPattern   = regexp.MustCompile(`20[0-9]{2}`)
	rfcPattern    = regexp.MustCompile(`\b[A-Z&]{3,4}[0-9]{6}[A-Z0-9]{3}\b`)
	monthPattern  = regexp.MustCompile(`ENERO|FEBRERO|MARZO|ABRIL|MAYO|JUNIO|JULIO|AGOSTO|SEPTIEMBRE|OCTUBRE|NOVIEMBRE|DICIEMBRE`)
)

var monthNumber = map[string]time.Month{
	"ENERO": time.January, "FEBRERO": time.February, "MARZO": time.March,
	"ABRIL": time.April, "MAYO": time.May, "JUNIO": time.June,
	"JULIO": time.July, "AGOSTO": time.August, "SEPTIEMBRE": time.September,
	"OCTUBRE": time.October, "NOVIEMBRE": time.November, "DICIEMBRE": time.December,
}

// labelWindow is how far past a label a value may sit. Flat extraction
// loses line breaks, so values are found by proximity, not position.
const labelWindow = 80

func window(text, label string) (string, bool) {
	idx := strings.Index(text, label)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(label):]
	if len(rest) > labelWindow {
		rest = rest[:labelWindow]
	}
	return rest, true
}

// amountAfter finds the first figure within the label's window.
func amountAfter(text, label string) (decimal.Decimal, bool) {
	w, ok := window(text, label)
	if !ok {
		return decimal.Zero, false
	}
	m := amountPattern.FindString(w)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// periodAfter reads a spelled-out period ("ENERO 2026", bimonthly
// "ENERO-FEBRERO 2026") and returns the closing date of its last month.
func periodAfter(text, label string) (end time.Time, months int, ok bool) {
	w, found := window(text, label)
	if !found {
		return time.Time{}, 0, false
	}
	names := monthPattern.FindAllString(w, -1)
	year := yearPattern.FindString(w)
	if len(names) == 0 || year == "" {
		return time.Time{}, 0, false
	}
	y := 0
	for _, c := range year {
		y = y*10 + int(c-'0')
	}
	m := monthNumber[names[len(names)-1]]
	// Day 0 of the following month is the period's closing date.
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC), len(names), true
}

// confidence scores a parse: the share of required labels found, 100
// only when every one parsed.
func confidence(found, required int) int {
	if required == 0 {
		return 0
	}
	return found * 100 / required
}

// Federal acknowledgement labels.
const (
	lblPeriod       = "PERIODO"
	lblAmountDue    = "CANTIDAD A PAGAR"
	lblISRHonoraria = "ISR RETENCIONES POR SERVICIOS PROFESIONALES"
	lblISRRental    = "ISR RETENCIONES POR ARRENDAMIENTO"
	lblExciseGross  = "IEPS A CARGO"
	lblExciseNet    = "IEPS A PAGAR"
	lblISRCorporate = "ISR PERSONAS MORALES PAGO PROVISIONAL"
	lblISRSalary    = "ISR RETENCIONES POR SALARIOS"
	lblVATOutput    = "IVA TRASLADADO"
	lblVATInput     = "IVA ACREDITABLE"
	lblLegalName    = "RAZON SOCIAL"
	lblRFC          = "RFC"
)

// ParseFederalDocs classifies and parses the SAT acknowledgements of one
// filing: the retentions return, the main ISR+VAT return and any
// per-supplier VAT retention payments. The bundle's confidence is the
// weakest document's; unrecognized documents are skipped with a warning.
func ParseFederalDocs(texts []string) (*domain.FederalTax, []string) {
	fed := &domain.FederalTax{Confidence: domain.ConfidenceFull}
	var warnings []string
	recognized := false

	for _, raw := range texts {
		text := foldText(raw)
		var conf int
		switch {
		case strings.Contains(text, lblISRHonoraria):
			fed.Retentions, conf = parseRetentionReturn(text)
		case strings.Contains(text, lblISRCorporate):
			fed.Main, conf = parseMainReturn(text)
		case strings.Contains(text, lblLegalName):
			var s domain.SupplierRetention
			s, conf = parseSupplierRetention(text)
			fed.Suppliers = append(fed.Suppliers, s)
		default:
			warnings = append(warnings, "federal PDF: unrecognized acknowledgement layout; skipped")
			continue
		}
		recognized = true
		if conf < fed.Confidence {
			fed.Confidence = conf
		}
	}

	if !recognized {
		return nil, warnings
	}
	return fed, warnings
}

func parseRetentionReturn(text string) (*domain.RetentionReturn, int) {
	ret := &domain.RetentionReturn{}
	found := 0
	if period, _, ok := periodAfter(text, lblPeriod); ok {
		ret.Period = period
		found++
	}
	for _, f := range []struct {
		label string
		dst   *decimal.Decimal
	}{
		{lblISRHonoraria, &ret.ISRHonoraria},
		{lblISRRental, &ret.ISRRental},
		{lblExciseGross, &ret.ExciseGross},
		{lblExciseNet, &ret.ExciseNet},
		{lblAmountDue, &ret.Total},
	} {
		if v, ok := amountAfter(text, f.label); ok {
			*f.dst = v
			found++
		}
	}
	return ret, confidence(found, 6)
}

func parseMainReturn(text string) (*domain.MainReturn, int) {
	m := &domain.MainReturn{}
	found := 0
	if period, _, ok := periodAfter(text, lblPeriod); ok {
		m.Period = period
		found++
	}
	for _, f := range []struct {
		label string
		dst   *decimal.Decimal
	}{
		{lblISRCorporate, &m.ISRProvisional},
		{lblISRSalary, &m.ISRSalary},
		{lblVATOutput, &m.VATCollected},
		{lblVATInput, &m.VATPaid},
		{lblAmountDue, &m.Total},
	} {
		if v, ok := amountAfter(text, f.label); ok {
			*f.dst = v
			found++
		}
	}
	return m, confidence(found, 6)
}

func parseSupplierRetention(text string) (domain.SupplierRetention, int) {
	var s domain.SupplierRetention
	found := 0
	if w, ok := window(text, lblLegalName); ok {
		// The RFC label follows the name on the same flow of text.
		if cut := strings.Index(w, lblRFC); cut >= 0 {
			w = w[:cut]
		}
		s.Supplier = strings.Trim(w, ":\n ")
		if s.Supplier != "" {
			found++
		}
	}
	if w, ok := window(text, lblRFC); ok {
		if rfc := rfcPattern.FindString(w); rfc != "" {
			s.RFC = rfc
			found++
		}
	}
	if v, ok := amountAfter(text, lblAmountDue); ok {
		s.Amount = v
		found++
	}
	return s, confidence(found, 3)
}

// State payroll-tax slip labels.
const (
	lblStateMarker = "IMPUESTO SOBRE NOMINA"
	lblTotalDue    = "TOTAL A PAGAR"
)

// ParseStateSlip parses the state payroll-tax payment slip.
func ParseStateSlip(raw string) *domain.StateTax {
	text := foldText(raw)
	st := &domain.StateTax{}
	found := 0
	if strings.Contains(text, lblStateMarker) {
		found++
	}
	if period, _, ok := periodAfter(text, lblPeriod); ok {
		st.Period = period
		found++
	}
	if v, ok := amountAfter(text, lblTotalDue); ok {
		st.Total = v
		found++
	}
	st.Confidence = confidence(found, 3)
	return st
}

// Social-security SUA summary labels.
const (
	lblPayPeriod    = "PERIODO DE PAGO"
	lblBimonthly    = "BIMESTRE"
	lblRetirement   = "RETIRO, CESANTIA Y VEJEZ"
	lblHousingPlain = "APORTACION SIN CREDITO"
	lblHousingLoan  = "APORTACION CON CREDITO"
	lblHousingAmort = "AMORTIZACION"
	lblJobRisk      = "RIESGO DE TRABAJO"
)

// ParseSocialSummary parses the SUA payment summary. A monthly summary
// carries only the period and total; a bimonthly one adds retirement,
// the two housing sub-totals (summed into the 5 % fund figure), the
// credit amortization withheld and the job-risk premium, and all of them
// are required for full confidence.
func ParseSocialSummary(raw string) *domain.SSTax {
	text := foldText(raw)
	ss := &domain.SSTax{}
	found, required := 0, 2

	months := 0
	if period, n, ok := periodAfter(text, lblPayPeriod); ok {
		ss.Period = period
		months = n
		found++
	}
	if v, ok := amountAfter(text, lblTotalDue); ok {
		ss.Total = v
		found++
	}

	ss.Bimonthly = months >= 2 || strings.Contains(text, lblBimonthly)
	if ss.Bimonthly {
		required += 5
		if v, ok := amountAfter(text, lblRetirement); ok {
			ss.Retirement = v
			found++
		}
		housing := decimal.Zero
		if v, ok := amountAfter(text, lblHousingPlain); ok {
			housing = housing.Add(v)
			found++
		}
		if v, ok := amountAfter(text, lblHousingLoan); ok {
			housing = housing.Add(v)
			found++
		}
		ss.HousingFund = housing
		if v, ok := amountAfter(text, lblHousingAmort); ok {
			ss.HousingAmort = v
			found++
		}
		if v, ok := amountAfter(text, lblJobRisk); ok {
			ss.JobRisk = v
			found++
		}
	}

	ss.Confidence = confidence(found, required)
	return ss
}
