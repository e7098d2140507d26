package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DailySessionRepository keeps the day-scoped session id of each user.
// Entries outlive their day by one so a late rollover still finds yesterday's id.
type DailySessionRepository struct {
	cache *cache.Cache
}

func NewDailySessionRepository() *DailySessionRepository {
	return &DailySessionRepository{
		cache: cache.New(48*time.Hour, time.Hour),
	}
}

func dailyKey(userID, day string) string {
	return userID + "/" + day
}

func (r *DailySessionRepository) GetDaily(userID, day string) (string, bool) {
	if x, found := r.cache.Get(dailyKey(userID, day)); found {
		return x.(string), true
	}
	return "", false
}

func (r *DailySessionRepository) SaveDaily(userID, day, sessionID string) error {
	r.cache.Set(dailyKey(userID, day), sessionID, cache.DefaultExpiration)
	return nil
}
