package classify

import (
	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

// Rule is one uncompiled classifier entry: a description regex, an
// optional account-role filter, and the kind assigned on match.
type Rule struct {
	// Pattern matches against the normalized (uppercase, diacritics
	// stripped) statement description.
	Pattern string

	// Role restricts the rule to accounts with this registry role;
	// empty matches any account.
	Role string

	Kind domain.ProcessKind

	// DestGroup is the capture group holding a transfer's destination
	// account number; zero when the rule captures nothing.
	DestGroup int
}

// DefaultRules is the production rule table. Order is load-bearing:
// first match wins, so more specific patterns precede their prefixes:
// the VAT-on-fee patterns must come before the bare fee patterns, and
// the card-fee rules (bound to the CARD account) before the generic
// wire-fee rules.
func DefaultRules() []Rule {
	return []Rule{
		// Card-acquirer fees, only ever on the CARD account.
		{Pattern: `(?i)IVA\s+COM(ISION)?\b.*(TARJETA|TDC|TDD)`, Role: config.RoleCard, Kind: domain.KindFeeCardVAT},
		{Pattern: `(?i)COM(ISION)?\b.*(TARJETA|TDC|TDD)`, Role: config.RoleCard, Kind: domain.KindFeeCard},

		// Wire/account fees on any account. IVA COMISION before COMISION.
		{Pattern: `(?i)IVA\s+(COMISION|COM\b|SPEI)`, Kind: domain.KindFeeWireVAT},
		{Pattern: `(?i)COMISION|COM\s+(SPEI|TRANSFERENCIA)|MANEJO\s+DE\s+CUENTA`, Kind: domain.KindFeeWire},

		// Card-sale settlements, only on the CARD account.
		{Pattern: `(?i)(VENTA|DEPOSITO|ABONO).*(TARJETA.*CREDITO|\bTDC\b)`, Role: config.RoleCard, Kind: domain.KindCardCreditSale},
		{Pattern: `(?i)(VENTA|DEPOSITO|ABONO).*(TARJETA.*DEBITO|\bTDD\b)`, Role: config.RoleCard, Kind: domain.KindCardDebitSale},

		// Over-the-counter cash deposits, only on the CASH account.
		{Pattern: `(?i)DEP(OSITO)?\s+(EN\s+)?EFECTIVO`, Role: config.RoleCash, Kind: domain.KindCashSale},

		// Internal transfers. The out-leg must carry an extractable
		// destination account; the bare "received" phrasing is the in-leg.
		{Pattern: `(?i)TRASPASO\s+A\s+(LA\s+)?CUENTA:?\s*(\d{6,})`, Kind: domain.KindTransferOut, DestGroup: 2},
		{Pattern: `(?i)TRASPASO\s+(DE\s+(LA\s+)?CUENTA|RECIBIDO)`, Kind: domain.KindTransferIn},

		// Payroll dispersion and later cashed checks.
		{Pattern: `(?i)DISPERSION\s+(DE\s+)?NOMINA|PAGO\s+NOMINA`, Kind: domain.KindPayroll},
		{Pattern: `(?i)CHEQUE\s+PAGADO|CH\.?\s+PAGADO`, Kind: domain.KindCheckCashed},

		// Tax payments. IMSS/SUA must precede the generic outbound-SPEI
		// supplier rule.
		{Pattern: `(?i)\bSAT\b|IMPUESTOS?\s+FEDERALES|LINEA\s+DE\s+CAPTURA`, Kind: domain.KindTaxFederal},
		{Pattern: `(?i)IMPUESTO\s+(SOBRE\s+)?NOMINAS?|GOBIERNO\s+DEL\s+ESTADO|\bISN\b`, Kind: domain.KindTaxState},
		{Pattern: `(?i)\bIMSS\b|\bSUA\b|\bINFONAVIT\b`, Kind: domain.KindTaxSocialSecurity},

		// Expense-account card charges, only on the EXPENSE account.
		{Pattern: `(?i)COMPRA|CARGO\s+TARJETA|PAGO\s+TARJETA`, Role: config.RoleExpense, Kind: domain.KindExpensePayment},

		// Outbound transfers to suppliers; inbound customer payments.
		{Pattern: `(?i)SPEI\s+ENVIADO|TRANSFERENCIA\s+ENVIADA|PAGO\s+(A\s+)?PROVEEDOR`, Kind: domain.KindSupplierPayment},
		{Pattern: `(?i)SPEI\s+RECIBIDO|TRANSFERENCIA\s+RECIBIDA|DEPOSITO\s+CLIENTE|COBRANZA`, Kind: domain.KindCustomerCollection},
	}
}
