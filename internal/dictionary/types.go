package dictionary

import "github.com/tinoosan/txledger/internal/ledger"

type TypeDef struct {
	Code        ledger.TransactionType `json:"code"`
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
}

// TransactionTypes lists the closed set of transaction types in catalogue order.
func TransactionTypes() []TypeDef {
	types := ledger.Types()
	out := make([]TypeDef, 0, len(types))
	for _, t := range types {
		out = append(out, TypeDef{Code: t, Label: t.Label(), Description: t.Description()})
	}
	return out
}

// Lookup returns the definition for a wire code, case-insensitively.
func Lookup(code string) (TypeDef, bool) {
	t, ok := ledger.ParseType(code)
	if !ok {
		return TypeDef{}, false
	}
	return TypeDef{Code: t, Label: t.Label(), Description: t.Description()}, true
}
