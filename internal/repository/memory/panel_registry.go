package memory

import (
	"sync"
	"time"

	"curiow-be/pkg/deepchat/conversation"

	"github.com/patrickmn/go-cache"
)

// PanelRegistry caches the live conversation panel of each (user, gem) pair.
// A panel idle for longer than the TTL is evicted and closed.
type PanelRegistry struct {
	mu       sync.Mutex
	cache    *cache.Cache
	mounting map[string]chan struct{} // closed once the key's panel is cached
}

func NewPanelRegistry(idleTTL time.Duration) *PanelRegistry {
	cleanup := idleTTL / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	c := cache.New(idleTTL, cleanup)
	c.OnEvicted(func(_ string, v interface{}) {
		if p, ok := v.(*conversation.Panel); ok {
			p.Close()
		}
	})
	return &PanelRegistry{cache: c, mounting: make(map[string]chan struct{})}
}

func panelKey(userID, gemID string) string {
	return userID + "/" + gemID
}

// GetOrCreate returns the live panel, mounting one with create when none is
// cached. Every access renews the idle deadline. create runs outside the
// registry lock; concurrent callers for the same key wait for the first one.
func (r *PanelRegistry) GetOrCreate(userID, gemID string, create func() *conversation.Panel) *conversation.Panel {
	key := panelKey(userID, gemID)
	for {
		r.mu.Lock()
		if p, found := r.getLocked(key); found {
			r.mu.Unlock()
			return p
		}
		if wait, busy := r.mounting[key]; busy {
			r.mu.Unlock()
			<-wait
			continue
		}
		done := make(chan struct{})
		r.mounting[key] = done
		r.mu.Unlock()

		return r.mount(key, done, create)
	}
}

func (r *PanelRegistry) mount(key string, done chan struct{}, create func() *conversation.Panel) *conversation.Panel {
	defer func() {
		r.mu.Lock()
		delete(r.mounting, key)
		r.mu.Unlock()
		close(done)
	}()

	p := create()
	r.mu.Lock()
	r.cache.Set(key, p, cache.DefaultExpiration)
	r.mu.Unlock()
	return p
}

func (r *PanelRegistry) getLocked(key string) (*conversation.Panel, bool) {
	x, found := r.cache.Get(key)
	if !found {
		return nil, false
	}
	p := x.(*conversation.Panel)
	r.cache.Set(key, p, cache.DefaultExpiration)
	return p, true
}

func (r *PanelRegistry) Get(userID, gemID string) (*conversation.Panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(panelKey(userID, gemID))
}

// Remove unmounts a panel.
func (r *PanelRegistry) Remove(userID, gemID string) {
	r.cache.Delete(panelKey(userID, gemID))
}

// UserPanels returns the live panels of one user.
func (r *PanelRegistry) UserPanels(userID string) []*conversation.Panel {
	var out []*conversation.Panel
	for _, item := range r.cache.Items() {
		if p, ok := item.Object.(*conversation.Panel); ok && p.UserID() == userID {
			out = append(out, p)
		}
	}
	return out
}

func (r *PanelRegistry) Count() int {
	return r.cache.ItemCount()
}

// CloseAll unmounts every panel.
func (r *PanelRegistry) CloseAll() {
	for key := range r.cache.Items() {
		r.cache.Delete(key)
	}
}
