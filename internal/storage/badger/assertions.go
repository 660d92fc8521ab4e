package badger

import "github.com/tinoosan/txledger/internal/service/transaction"

// Compile-time interface assertion documenting which interface Store satisfies.
var _ transaction.Store = (*Store)(nil)
