package results

import (
	"sort"

	"github.com/evalops/deployverify/internal/models"
)

// Plan splits the current suite against prior results: work is every case
// whose prior result is absent or not a clean success, base is the prior
// successes kept unchanged. Prior results for cases no longer in the suite
// are dropped. Planning an already-fully-successful result set against the
// same suite yields empty work, which makes incremental runs idempotent.
func Plan(prior []*models.QueryResult, cases []*models.TestCase) (work []*models.TestCase, base []*models.QueryResult) {
	byID := make(map[string]*models.QueryResult, len(prior))
	for _, r := range prior {
		byID[r.ID] = r
	}

	for _, tc := range cases {
		if r, ok := byID[tc.ID]; ok && r.Succeeded() {
			base = append(base, r)
			continue
		}
		work = append(work, tc)
	}
	return work, base
}

// Merge combines kept prior results with fresh ones, keyed by identifier
// with fresh results winning, and returns the set ordered by suite index.
// No identifier appears twice in the output.
func Merge(base, fresh []*models.QueryResult) []*models.QueryResult {
	merged := make(map[string]*models.QueryResult, len(base)+len(fresh))
	for _, r := range base {
		merged[r.ID] = r
	}
	for _, r := range fresh {
		merged[r.ID] = r
	}

	out := make([]*models.QueryResult, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out
}
