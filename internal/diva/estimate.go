package diva

import "fmt"

// responseSizeWarnThreshold is the estimated token count above which the
// client logs an advisory. Responses near the downstream 25,000-token
// ceiling arrive truncated, so callers should narrow the request first.
const responseSizeWarnThreshold = 20000

// tokensPerRecord are rough per-view estimates for a full record.
var tokensPerRecord = map[string]int{
	"authorizations": 100,
	"settlements":    120,
	"clearings":      150,
	"declines":       140,
	"cards":          80,
	"users":          70,
	"chargebacks":    200,
}

const defaultTokensPerRecord = 100

// EstimateResponseSize estimates the token footprint of a view response.
// A non-empty warning is advisory only; requests are never blocked on it.
func EstimateResponseSize(viewName string, count int, fields []string) (int, string) {
	base, ok := tokensPerRecord[viewName]
	if !ok {
		base = defaultTokensPerRecord
	}

	// A narrowed projection cuts the estimate to roughly 40%.
	if len(fields) > 0 {
		base = int(float64(base) * 0.4)
	}

	estimated := base * count

	warning := ""
	if estimated > responseSizeWarnThreshold {
		warning = fmt.Sprintf(
			"requesting %d records may return ~%d tokens (limit is 25,000); reduce 'count' or use more specific 'fields'",
			count, estimated,
		)
	}

	return estimated, warning
}
