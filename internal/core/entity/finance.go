package entity

import (
	"time"

	"varejo/internal/core/id"
	"varejo/internal/core/types"
)

// PaymentMethod is how a sale was (or will be) paid.
type PaymentMethod string

const (
	MethodCash           PaymentMethod = "CASH"
	MethodPix            PaymentMethod = "PIX"
	MethodDebitCard      PaymentMethod = "DEBIT_CARD"
	MethodCreditCard     PaymentMethod = "CREDIT_CARD"
	MethodStoreCredit    PaymentMethod = "STORE_CREDIT"
	MethodBankSlip       PaymentMethod = "BANK_SLIP"
	MethodPostDatedCheck PaymentMethod = "POST_DATED_CHECK"
)

// SettlesImmediately reports whether the method produces a cash entry at
// confirmation time. Credit cards settle immediately only when charged in a
// single installment.
func (m PaymentMethod) SettlesImmediately(installments int) bool {
	switch m {
	case MethodCash, MethodPix, MethodDebitCard:
		return true
	case MethodCreditCard:
		return installments <= 1
	default:
		return false
	}
}

// ReceivableKind classifies a scheduled future payment.
type ReceivableKind string

const (
	KindCardInstallment ReceivableKind = "CARD_INSTALLMENT"
	KindStoreCredit     ReceivableKind = "STORE_CREDIT"
	KindBankSlip        ReceivableKind = "BANK_SLIP"
	KindPostDatedCheck  ReceivableKind = "POST_DATED_CHECK"
)

// ReceivableKindFor maps a deferred payment method to its receivable kind.
// Returns false for methods that never produce receivables.
func ReceivableKindFor(m PaymentMethod) (ReceivableKind, bool) {
	switch m {
	case MethodCreditCard:
		return KindCardInstallment, true
	case MethodStoreCredit:
		return KindStoreCredit, true
	case MethodBankSlip:
		return KindBankSlip, true
	case MethodPostDatedCheck:
		return KindPostDatedCheck, true
	default:
		return "", false
	}
}

// ReceivableStatus of a scheduled payment.
type ReceivableStatus string

const (
	ReceivableOpen      ReceivableStatus = "OPEN"
	ReceivablePaid      ReceivableStatus = "PAID"
	ReceivableCancelled ReceivableStatus = "CANCELLED"
)

// Payment is a settled payment attached to a sale. Only methods that settle
// immediately at confirmation produce Payment rows.
type Payment struct {
	ID        id.ID         `db:"id" json:"id"`
	SaleID    id.ID         `db:"sale_id" json:"saleId"`
	Method    PaymentMethod `db:"method" json:"method"`
	Amount    types.Money   `db:"amount" json:"amount"`
	AccountID id.ID         `db:"account_id" json:"accountId"`
	Date      time.Time     `db:"date" json:"date"`
}

// Receivable is a scheduled future payment owed by a customer.
// CustomerID is mandatory; deferred methods cannot exist without one.
type Receivable struct {
	ID            id.ID            `db:"id" json:"id"`
	SaleID        id.ID            `db:"sale_id" json:"saleId"`
	CustomerID    id.ID            `db:"customer_id" json:"customerId"`
	InstallmentNo int              `db:"installment_no" json:"installmentNo"`
	DueDate       time.Time        `db:"due_date" json:"dueDate"`
	Amount        types.Money      `db:"amount" json:"amount"`
	Status        ReceivableStatus `db:"status" json:"status"`
	Kind          ReceivableKind   `db:"kind" json:"kind"`
}

// FinanceEntryType of a finance ledger entry.
type FinanceEntryType string

const (
	EntryIncome  FinanceEntryType = "INCOME"
	EntryExpense FinanceEntryType = "EXPENSE"
)

// FinanceEntryStatus of a finance ledger entry.
type FinanceEntryStatus string

const (
	EntryOpen FinanceEntryStatus = "OPEN"
	EntryPaid FinanceEntryStatus = "PAID"
)

// FinanceEntry reflects cash movement into or out of an account.
type FinanceEntry struct {
	ID        id.ID              `db:"id" json:"id"`
	Type      FinanceEntryType   `db:"type" json:"type"`
	AccountID id.ID              `db:"account_id" json:"accountId"`
	Amount    types.Money        `db:"amount" json:"amount"`
	Status    FinanceEntryStatus `db:"status" json:"status"`
	PaidAt    *time.Time         `db:"paid_at" json:"paidAt,omitempty"`
	Notes     string             `db:"notes" json:"notes"`
}
