// Package payment holds the three gateway adapters (Click, Payme, Uzum).
// Each adapter owns its provider's wire format, signature scheme, and error
// vocabulary; the reconciliation core behind them is provider-agnostic.
package payment

import (
	"context"
	"encoding/json"
	"net/http"
)

// Locker is the optional in-flight webhook claim (satisfied by
// redis.RedisLocker, which owns the claim TTL). A nil Locker disables the
// claim; the database ledger still guarantees at-most-once crediting.
type Locker interface {
	TryLock(ctx context.Context, key string) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// numOrZero guards against echoing an empty json.Number, which would not
// marshal as valid JSON.
func numOrZero(n json.Number) json.Number {
	if n == "" {
		return "0"
	}
	return n
}
