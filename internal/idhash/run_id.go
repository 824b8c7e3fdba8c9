package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"portfolio-lab/internal/domain"
)

// ComputeRunID computes a deterministic id for a comparison over the resolved
// window [start, end]. The request's own dates are ignored: an open-ended
// request run on two different days covers two windows and gets two ids.
// Formula: SHA256(tickers|start|end|tw|rw|bps|min|max|bench|bench_ticker|vol|target)
// Returns the first 16 bytes of the hash, base58-encoded.
func ComputeRunID(req domain.CompareRequest, start, end time.Time) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d|%g|%g|%g|%s|%s|%t|%g",
		strings.Join(req.NormalizedTickers(), ","),
		start.UTC().Format(domain.DateLayout),
		end.UTC().Format(domain.DateLayout),
		req.TrainingWindow,
		req.RebalancingWindow,
		req.TransactionCostBps,
		req.MinWeight,
		req.MaxWeight,
		req.BenchmarkType,
		strings.ToUpper(req.BenchmarkTicker),
		req.EnableVolatilityScaling,
		req.TargetVolatility,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}
