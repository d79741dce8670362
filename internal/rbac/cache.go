package rbac

import (
	"context"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/bginfotechs/bginfotechs/internal/access"
)

// PrincipalCache keeps recently resolved principals in memory.
// A zero TTL or size disables caching; loads still collapse per user.
type PrincipalCache struct {
	entries *lru.LRU[int64, *access.Principal]
	group   singleflight.Group

	// mu guards generation. It changes on every invalidation so in-flight
	// loads that started before it are not stored.
	mu         sync.Mutex
	generation uint64
}

// NewPrincipalCache constructs a cache holding up to size principals for ttl.
func NewPrincipalCache(size int, ttl time.Duration) *PrincipalCache {
	c := &PrincipalCache{}
	if size > 0 && ttl > 0 {
		c.entries = lru.NewLRU[int64, *access.Principal](size, nil, ttl)
	}
	return c
}

// Get returns the cached principal or resolves it with load.
func (c *PrincipalCache) Get(ctx context.Context, userID int64, load func(context.Context, int64) (*access.Principal, error)) (*access.Principal, error) {
	if c == nil {
		return load(ctx, userID)
	}
	if c.entries != nil {
		if p, ok := c.entries.Get(userID); ok {
			return clonePrincipal(p), nil
		}
	}
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	key := strconv.FormatUint(gen, 10) + ":" + strconv.FormatInt(userID, 10)
	ch := c.group.DoChan(key, func() (any, error) {
		p, err := load(context.WithoutCancel(ctx), userID)
		if err != nil {
			return nil, err
		}
		c.store(gen, userID, p)
		return p, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clonePrincipal(res.Val.(*access.Principal)), nil
	}
}

// Invalidate drops the entry of one user.
func (c *PrincipalCache) Invalidate(userID int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.entries != nil {
		c.entries.Remove(userID)
	}
}

// Purge drops every entry. Used when role or group grants change.
func (c *PrincipalCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.entries != nil {
		c.entries.Purge()
	}
}

// store adds p unless an invalidation happened since gen was read.
func (c *PrincipalCache) store(gen uint64, userID int64, p *access.Principal) {
	if c.entries == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.entries.Add(userID, p)
	}
}

// Len reports the number of cached principals.
func (c *PrincipalCache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func clonePrincipal(p *access.Principal) *access.Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.Permissions = append([]string(nil), p.Permissions...)
	if p.Role != nil {
		role := *p.Role
		role.Permissions = append([]string(nil), p.Role.Permissions...)
		out.Role = &role
	}
	if p.Groups != nil {
		out.Groups = make([]access.Group, len(p.Groups))
		for i, g := range p.Groups {
			g.Permissions = append([]string(nil), g.Permissions...)
			out.Groups[i] = g
		}
	}
	return &out
}
