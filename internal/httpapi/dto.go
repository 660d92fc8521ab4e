package httpapi

import "github.com/tinoosan/txledger/internal/ledger"

// transactionRequest is the body of POST and PUT /api/transactions.
// Responses use ledger.Projection and ledger.Page directly.
type transactionRequest struct {
	ID                        string        `json:"id"`
	UserID                    string        `json:"userId"`
	Amount                    ledger.Amount `json:"amount"`
	Type                      string        `json:"type"`
	TransactionSummary        string        `json:"transactionSummary"`
	CounterpartyName          string        `json:"counterpartyName"`
	CounterpartyAccountNumber string        `json:"counterpartyAccountNumber"`
	Description               string        `json:"description"`
}

func (req transactionRequest) toInput() ledger.Input {
	return ledger.Input{
		ID:                        req.ID,
		UserID:                    req.UserID,
		Amount:                    req.Amount,
		Type:                      req.Type,
		TransactionSummary:        req.TransactionSummary,
		CounterpartyName:          req.CounterpartyName,
		CounterpartyAccountNumber: req.CounterpartyAccountNumber,
		Description:               req.Description,
	}
}

// pageQuery holds the parsed query of GET /api/transactions.
type pageQuery struct {
	Page int
	Size int
}
