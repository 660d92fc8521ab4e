package ledger

import (
	"strings"
	"time"
)

// TransactionType enumerates the kinds of transaction the ledger accepts.
// The set is closed: values outside the table below are rejected by ParseType.
type TransactionType string

const (
	// TypeDeposit moves funds into an account.
	TypeDeposit TransactionType = "DEPOSIT"
	// TypeWithdrawal takes funds out of an account.
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	// TypeTransfer moves funds from one account to another.
	TypeTransfer TransactionType = "TRANSFER"
	// TypeExpense records spending such as purchases.
	TypeExpense TransactionType = "EXPENSE"
	// TypeIncome records salary, bonuses, interest and similar inflows.
	TypeIncome TransactionType = "INCOME"
	// TypePayment records bill payments such as utilities or rent.
	TypePayment TransactionType = "PAYMENT"
	// TypeRefund records money returned for a refund or return.
	TypeRefund TransactionType = "REFUND"
)

type typeDef struct {
	label       string
	description string
}

// typeDefs is the single source of truth for membership, labels and descriptions.
var typeDefs = map[TransactionType]typeDef{
	TypeDeposit:    {label: "Deposit", description: "Funds deposited into a bank account"},
	TypeWithdrawal: {label: "Withdrawal", description: "Funds withdrawn from a bank account"},
	TypeTransfer:   {label: "Transfer", description: "Funds moved from one account to another"},
	TypeExpense:    {label: "Expense", description: "Purchases and other spending from the account"},
	TypeIncome:     {label: "Income", description: "Salary, bonuses, interest and other income received"},
	TypePayment:    {label: "Payment", description: "Bill payments such as utilities, phone or property fees"},
	TypeRefund:     {label: "Refund", description: "Money received back from a refund or return"},
}

// typeOrder fixes the catalogue order.
var typeOrder = []TransactionType{
	TypeDeposit, TypeWithdrawal, TypeTransfer, TypeExpense, TypeIncome, TypePayment, TypeRefund,
}

// ParseType resolves a wire value to a TransactionType. Input is trimmed and upper-cased.
func ParseType(s string) (TransactionType, bool) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := typeDefs[t]; !ok {
		return "", false
	}
	return t, true
}

// Valid reports whether t is a member of the closed set.
func (t TransactionType) Valid() bool {
	_, ok := typeDefs[t]
	return ok
}

// Label returns the human-readable name, or "" for an unknown type.
func (t TransactionType) Label() string { return typeDefs[t].label }

// Description returns the long-form explanation of the type.
func (t TransactionType) Description() string { return typeDefs[t].description }

// Types returns every member of the enumeration in catalogue order.
func Types() []TransactionType {
	out := make([]TransactionType, len(typeOrder))
	copy(out, typeOrder)
	return out
}

// Transaction is a single ledger record. The store owns it; callers hold copies.
type Transaction struct {
	ID                        string
	UserID                    string
	Amount                    Amount
	Type                      TransactionType
	TransactionSummary        string
	CounterpartyName          string
	CounterpartyAccountNumber string
	Description               string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Input is the caller-supplied shape for create and update.
// Type is kept as the raw wire string so the service can reject unknown values.
type Input struct {
	ID                        string
	UserID                    string
	Amount                    Amount
	Type                      string
	TransactionSummary        string
	CounterpartyName          string
	CounterpartyAccountNumber string
	Description               string
}

// Apply copies the mutable fields of in onto t. ID and timestamps are left alone.
func (t *Transaction) Apply(in Input, typ TransactionType) {
	t.UserID = in.UserID
	t.Amount = in.Amount
	t.Type = typ
	t.TransactionSummary = in.TransactionSummary
	t.CounterpartyName = in.CounterpartyName
	t.CounterpartyAccountNumber = in.CounterpartyAccountNumber
	t.Description = in.Description
}

// Projection is the caller-facing view of a record: all fields plus the type label.
type Projection struct {
	ID                        string          `json:"id"`
	UserID                    string          `json:"userId"`
	Amount                    Amount          `json:"amount"`
	Type                      TransactionType `json:"type"`
	TypeName                  string          `json:"typeName"`
	TransactionSummary        string          `json:"transactionSummary"`
	CounterpartyName          string          `json:"counterpartyName,omitempty"`
	CounterpartyAccountNumber string          `json:"counterpartyAccountNumber,omitempty"`
	Description               string          `json:"description,omitempty"`
	CreatedAt                 time.Time       `json:"createdAt"`
	UpdatedAt                 time.Time       `json:"updatedAt"`
}

// Project builds the caller-facing view of t.
func (t Transaction) Project() Projection {
	return Projection{
		ID:                        t.ID,
		UserID:                    t.UserID,
		Amount:                    t.Amount,
		Type:                      t.Type,
		TypeName:                  t.Type.Label(),
		TransactionSummary:        t.TransactionSummary,
		CounterpartyName:          t.CounterpartyName,
		CounterpartyAccountNumber: t.CounterpartyAccountNumber,
		Description:               t.Description,
		CreatedAt:                 t.CreatedAt,
		UpdatedAt:                 t.UpdatedAt,
	}
}

// Page is one slice of the full listing ordered by CreatedAt descending.
type Page struct {
	Content       []Projection `json:"content"`
	PageNumber    int          `json:"pageNumber"`
	PageSize      int          `json:"pageSize"`
	TotalElements int          `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
}
