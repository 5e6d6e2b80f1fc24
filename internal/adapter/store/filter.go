package store

import (
	"fmt"
	"sort"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
	"github.com/arturoeanton/go-pr-dedup/internal/port"
)

// filterMatches converts raw nearest-neighbour hits into user-facing matches:
// score scaled to a percentage, the querying PR itself and entries from other
// repositories dropped (multi-tenant index safety), the similarity floor
// applied, and the remainder ordered by descending percentage.
//
// A stored id that fails to decode is an invariant violation and fails the
// whole query.
func filterMatches(raw []port.RawMatch, minSimilarity int, selfID, repo string) ([]domain.SimilarityMatch, error) {
	var out []domain.SimilarityMatch
	for _, m := range raw {
		matchRepo, prNumber, err := domain.DecodePRID(m.ID)
		if err != nil {
			return nil, fmt.Errorf("decode match id: %w", err)
		}
		if m.ID == selfID || matchRepo != repo {
			continue
		}
		pct := m.Score * 100
		if pct > 100 {
			pct = 100
		}
		if pct < float64(minSimilarity) {
			continue
		}
		out = append(out, domain.SimilarityMatch{
			PRURL:      domain.PullRequestURL(matchRepo, prNumber),
			Percentage: pct,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	return out, nil
}
