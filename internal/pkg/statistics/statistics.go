package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/cache"
)

const (
	CacheKeyUsers              = "statistics:users:total"
	CacheKeyFacts              = "statistics:facts:total"
	CacheKeyActiveIntegrations = "statistics:integrations:active:"
	CacheKeySubscriptions      = "statistics:subscriptions:entitling"
	CacheExpiration            = 30 * time.Minute
)

// StatisticsData is the platform overview shown on the admin fetch-stats page.
type StatisticsData struct {
	TotalUsers            int            `json:"total_users"`
	TotalFacts            int            `json:"total_facts"`
	EntitlingSubscription int            `json:"entitling_subscriptions"`
	ActiveIntegrations    map[string]int `json:"active_integrations"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the refresh interval has passed.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()
	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached counts at most once per interval.
func UpdateCacheIfNeeded(db *gorm.DB) {
	if !ShouldUpdateCache() {
		return
	}
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	if err := UpdateStatisticsCache(db); err != nil {
		log.Printf("[Statistics] cache refresh failed: %v", err)
		return
	}
	lastCacheUpdate = time.Now()
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()
	lastCacheUpdate = time.Time{}
}

type countQuery struct {
	key   string
	model any
	where []any
}

func queries() []countQuery {
	q := []countQuery{
		{key: CacheKeyUsers, model: &models.User{}},
		{key: CacheKeyFacts, model: &models.CampaignFact{}},
		{key: CacheKeySubscriptions, model: &models.Subscription{}, where: []any{"status IN ?", []string{
			models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue,
		}}},
	}
	for _, p := range models.Platforms {
		q = append(q, countQuery{
			key:   CacheKeyActiveIntegrations + string(p),
			model: &models.Integration{},
			where: []any{"platform_name = ? AND status = ?", p, models.IntegrationStatusActive},
		})
	}
	return q
}

func count(db *gorm.DB, q countQuery) (int64, error) {
	tx := db.Model(q.model)
	if len(q.where) > 0 {
		tx = tx.Where(q.where[0], q.where[1:]...)
	}
	var n int64
	err := tx.Count(&n).Error
	return n, err
}

// UpdateStatisticsCache recounts everything and stores the numbers in Redis.
func UpdateStatisticsCache(db *gorm.DB) error {
	for _, q := range queries() {
		n, err := count(db, q)
		if err != nil {
			return err
		}
		if err := cache.Set(q.key, strconv.FormatInt(n, 10), CacheExpiration); err != nil {
			return err
		}
	}
	return nil
}

// cachedCount reads a count from Redis, falling back to the database on a miss.
func cachedCount(db *gorm.DB, q countQuery) int {
	if val, err := cache.Get(q.key); err == nil {
		n, perr := strconv.Atoi(val)
		if perr == nil {
			return n
		}
	}
	n, err := count(db, q)
	if err != nil {
		log.Printf("[Statistics] count %s failed: %v", q.key, err)
		return 0
	}
	if err := cache.Set(q.key, strconv.FormatInt(n, 10), CacheExpiration); err != nil {
		log.Printf("[Statistics] cache %s failed: %v", q.key, err)
	}
	return int(n)
}

// GetStatisticsData returns all counts, refreshing the cache when due.
func GetStatisticsData(db *gorm.DB) StatisticsData {
	UpdateCacheIfNeeded(db)

	out := StatisticsData{ActiveIntegrations: make(map[string]int, len(models.Platforms))}
	for _, q := range queries() {
		n := cachedCount(db, q)
		switch q.key {
		case CacheKeyUsers:
			out.TotalUsers = n
		case CacheKeyFacts:
			out.TotalFacts = n
		case CacheKeySubscriptions:
			out.EntitlingSubscription = n
		default:
			out.ActiveIntegrations[q.key[len(CacheKeyActiveIntegrations):]] = n
		}
	}
	return out
}
