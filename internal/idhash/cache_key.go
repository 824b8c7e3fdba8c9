package idhash

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
)

// ComputePriceKey computes a deterministic cache key for a price request.
// Formula: SHA256(sorted(tickers joined by ",")|start|end)
// Tickers are upper-cased and sorted so the key ignores request order.
// Returns base58-encoded hash.
func ComputePriceKey(tickers []string, start, end string) string {
	norm := make([]string, len(tickers))
	for i, t := range tickers {
		norm[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	sort.Strings(norm)

	data := fmt.Sprintf("%s|%s|%s", strings.Join(norm, ","), start, end)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
