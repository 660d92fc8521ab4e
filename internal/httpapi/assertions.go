package httpapi

import (
	rediscache "github.com/tinoosan/txledger/internal/cache/redis"
	badgerstore "github.com/tinoosan/txledger/internal/storage/badger"
	"github.com/tinoosan/txledger/internal/storage/postgres"
)

// Compile-time interface assertions for backends probed by /readyz.
var (
	_ ReadyChecker = (*postgres.Store)(nil)
	_ ReadyChecker = (*badgerstore.Store)(nil)
	_ ReadyChecker = (*rediscache.Cache)(nil)
)
