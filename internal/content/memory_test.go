package content

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
)

type memoryRepo struct {
	mu     sync.Mutex
	items  map[int64]Item
	nextID int64
}

func newMemoryRepo(items ...Item) *memoryRepo {
	r := &memoryRepo{items: make(map[int64]Item), nextID: 1}
	for _, it := range items {
		if it.ID >= r.nextID {
			r.nextID = it.ID + 1
		}
		r.items[it.ID] = it
	}
	return r
}

func (r *memoryRepo) List(ctx context.Context, kind Kind, vis access.Visibility, page Page) ([]Item, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Item
	for _, it := range r.items {
		if it.Kind == kind && vis.Allows(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if page.Offset >= len(out) {
		return []Item{}, total, nil
	}
	out = out[page.Offset:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, total, nil
}

func (r *memoryRepo) Get(ctx context.Context, kind Kind, id int64) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.Kind != kind {
		return Item{}, httpx.ErrNotFound
	}
	return it, nil
}

func (r *memoryRepo) SlugTaken(ctx context.Context, kind Kind, slug string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.Kind == kind && it.Slug == slug && it.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Create(ctx context.Context, item Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = r.nextID
	r.nextID++
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) Update(ctx context.Context, item Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[item.ID]
	if !ok {
		return Item{}, httpx.ErrNotFound
	}
	item.Owner = old.Owner
	item.CreatedAt = old.CreatedAt
	item.UpdatedAt = time.Now()
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) Delete(ctx context.Context, kind Kind, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[id]; !ok || it.Kind != kind {
		return httpx.ErrNotFound
	}
	delete(r.items, id)
	return nil
}
