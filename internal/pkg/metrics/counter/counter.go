// Package counter keeps per-platform fetch outcome counters in Redis hashes.
package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/cache"
)

// Fetch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var Outcomes = []string{OutcomeSuccess, OutcomePartial, OutcomeFailed, OutcomeSkipped}

const lastRunField = "last_run_unix"

func fetchKey(platform models.Platform) string {
	return "fetch:" + string(platform)
}

// AddFetch increments the outcome counter of a platform and stamps the last run time.
func AddFetch(platform models.Platform, outcome string, at time.Time) error {
	ctx := context.Background()
	pipe := cache.GetClient().TxPipeline()
	pipe.HIncrBy(ctx, fetchKey(platform), outcome, 1)
	pipe.HSet(ctx, fetchKey(platform), lastRunField, at.Unix())
	_, err := pipe.Exec(ctx)
	return err
}

// FetchStats is a snapshot of one platform's counters.
type FetchStats struct {
	Platform models.Platform  `json:"platform"`
	Counts   map[string]int64 `json:"counts"`
	LastRun  *time.Time       `json:"last_run,omitempty"`
}

func parseStats(platform models.Platform, data map[string]string) FetchStats {
	s := FetchStats{Platform: platform, Counts: make(map[string]int64, len(Outcomes))}
	for _, o := range Outcomes {
		s.Counts[o] = 0
	}
	for k, v := range data {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		if k == lastRunField {
			t := time.Unix(n, 0).UTC()
			s.LastRun = &t
			continue
		}
		s.Counts[k] = n
	}
	return s
}

// GetFetchStats reads the counters without changing them.
func GetFetchStats(platform models.Platform) (FetchStats, error) {
	data, err := cache.GetClient().HGetAll(context.Background(), fetchKey(platform)).Result()
	if err != nil {
		return FetchStats{}, err
	}
	return parseStats(platform, data), nil
}

// DrainFetchStats returns the counters and resets them.
// The hash is renamed first so increments arriving meanwhile land in a fresh hash.
func DrainFetchStats(platform models.Platform) (FetchStats, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", fetchKey(platform), time.Now().UnixNano())
	if err := rdb.Rename(ctx, fetchKey(platform), tmpKey).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || cache.IsMiss(err) {
			return parseStats(platform, nil), nil
		}
		return FetchStats{}, err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return FetchStats{}, err
	}
	return parseStats(platform, data), nil
}
