package persistence

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
)

// CachedResult is the persisted outcome of one (address, message, signature) triple
type CachedResult struct {
	Address  string `json:"address"`
	Valid    bool   `json:"valid"`
	CachedAt int64  `json:"cachedAt"`
}

// CacheKey derives the cache key of a verification request. Each field is
// CompactSize length prefixed, so no two distinct triples share a preimage.
func CacheKey(address string, message []byte, signature string) string {
	h := sha256.New()
	// hash.Hash writes never fail
	_ = wire.WriteVarBytes(h, 0, []byte(address))
	_ = wire.WriteVarBytes(h, 0, message)
	_ = wire.WriteVarBytes(h, 0, []byte(signature))
	return hex.EncodeToString(h.Sum(nil))
}
