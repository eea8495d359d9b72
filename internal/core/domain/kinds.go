package domain

// ProcessKind labels what a classified bank-statement line represents.
// The set is closed; the classifier maps every line to exactly one kind.
type ProcessKind string

const (
	KindCardCreditSale     ProcessKind = "CARD_CREDIT_SALE"
	KindCardDebitSale      ProcessKind = "CARD_DEBIT_SALE"
	KindCashSale           ProcessKind = "CASH_SALE"
	KindTransferOut        ProcessKind = "INTERNAL_TRANSFER_OUT"
	KindTransferIn         ProcessKind = "INTERNAL_TRANSFER_IN"
	KindFeeWire            ProcessKind = "FEE_WIRE"
	KindFeeWireVAT         ProcessKind = "FEE_WIRE_VAT"
	KindFeeCard            ProcessKind = "FEE_CARD"
	KindFeeCardVAT         ProcessKind = "FEE_CARD_VAT"
	KindPayroll            ProcessKind = "PAYROLL"
	KindCheckCashed        ProcessKind = "CHECK_CASHED"
	KindSupplierPayment    ProcessKind = "SUPPLIER_PAYMENT"
	KindExpensePayment     ProcessKind = "EXPENSE_ACCOUNT_PAYMENT"
	KindCustomerCollection ProcessKind = "CUSTOMER_COLLECTION"
	KindTaxFederal         ProcessKind = "TAX_FEDERAL"
	KindTaxState           ProcessKind = "TAX_STATE"
	KindTaxSocialSecurity  ProcessKind = "TAX_SOCIAL_SECURITY"
	KindUnknown            ProcessKind = "UNKNOWN"
)

// Family groups process kinds that share one processor.
type Family string

const (
	FamilyTransfers   Family = "transfers"
	FamilyFees        Family = "fees"
	FamilyCardSales   Family = "card-sales"
	FamilyCashSales   Family = "cash-sales"
	FamilyPayroll     Family = "payroll"
	FamilyChecks      Family = "checks"
	FamilyExpenses    Family = "expenses"
	FamilySuppliers   Family = "suppliers"
	FamilyCollections Family = "collections"
	FamilyTaxes       Family = "taxes"
)

// DispatchOrder is the fixed cross-family execution order for one day.
// Transfers run first so the in-leg of an internal transfer is already
// minted when later lookups touch the destination account; payroll runs
// before checks because cashed checks consume the payroll's provisioned
// buckets.
var DispatchOrder = []Family{
	FamilyTransfers,
	FamilyFees,
	FamilyCardSales,
	FamilyCashSales,
	FamilyPayroll,
	FamilyChecks,
	FamilyExpenses,
	FamilySuppliers,
	FamilyCollections,
	FamilyTaxes,
}

var kindFamilies = map[ProcessKind]Family{
	KindTransferOut:        FamilyTransfers,
	KindFeeWire:            FamilyFees,
	KindFeeWireVAT:         FamilyFees,
	KindFeeCard:            FamilyFees,
	KindFeeCardVAT:         FamilyFees,
	KindCardCreditSale:     FamilyCardSales,
	KindCardDebitSale:      FamilyCardSales,
	KindCashSale:           FamilyCashSales,
	KindPayroll:            FamilyPayroll,
	KindCheckCashed:        FamilyChecks,
	KindExpensePayment:     FamilyExpenses,
	KindSupplierPayment:    FamilySuppliers,
	KindCustomerCollection: FamilyCollections,
	KindTaxFederal:         FamilyTaxes,
	KindTaxState:           FamilyTaxes,
	KindTaxSocialSecurity:  FamilyTaxes,
}

// FamilyOf returns the processor family handling the kind. The second
// return is false for UNKNOWN and for INTERNAL_TRANSFER_IN, which is never
// dispatched (the out-leg mints both rows).
func FamilyOf(k ProcessKind) (Family, bool) {
	f, ok := kindFamilies[k]
	return f, ok
}

// Delayed reports whether lines of this kind settle on the following
// day's dispatch instead of their own (reversal guard).
func (k ProcessKind) Delayed() bool {
	return k == KindSupplierPayment || k == KindExpensePayment
}

// Action is the terminal state of one statement line after a run.
type Action string

const (
	ActionInsert       Action = "INSERT"
	ActionReconcile    Action = "RECONCILE"
	ActionSkip         Action = "SKIP"
	ActionNotProcessed Action = "NOT_PROCESSED"
	ActionNeedsReview  Action = "NEEDS_REVIEW"
	ActionError        Action = "ERROR"
	ActionUnknown      Action = "UNKNOWN"
)

// Direction tells which statement column carried the amount.
type Direction int

const (
	// DirIn is a deposit (credit column of the statement).
	DirIn Direction = 1

	// DirOut is a withdrawal (debit column of the statement).
	DirOut Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "IN"
	case DirOut:
		return "OUT"
	default:
		return "NONE"
	}
}

// Side is the debit/credit side of a ledger line.
type Side int

const (
	Debit  Side = 1
	Credit Side = 2
)

func (s Side) String() string {
	switch s {
	case Debit:
		return "Dr"
	case Credit:
		return "Cr"
	default:
		return "??"
	}
}

// LedgerKind is the legacy journal a movement's entry posts into.
type LedgerKind int

const (
	LedgerIncome  LedgerKind = 1
	LedgerExpense LedgerKind = 2
	LedgerJournal LedgerKind = 3
)

// Document-type tags carried by ledger entries. Transfers are tagged
// TRANSFER so the two-leg shape can be told apart from payment entries.
const (
	DocTypeChecks   = "CHECKS"
	DocTypeTransfer = "TRANSFER"
)

// Legacy class labels stamped on minted movement rows.
const (
	ClassDailySale      = "DAILY_SALE"
	ClassDeposits       = "DEPOSITS"
	ClassBankAdjustment = "BANK_ADJUSTMENT"
	ClassFees           = "FEES"
	ClassTransfer       = "TRANSFER"
	ClassPayroll        = "PAYROLL"
	ClassTaxes          = "TAXES"
	ClassExpenses       = "EXPENSES"
)

// Payment-method labels used by the movement table.
const (
	PayMethodCash       = "Cash"
	PayMethodCreditCard = "CreditCard"
	PayMethodDebitCard  = "DebitCard"
	PayMethodTransfer   = "Transfer"
	PayMethodCheck      = "Check"
)
