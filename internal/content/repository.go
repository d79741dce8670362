package content

import (
	"context"

	"github.com/bginfotechs/bginfotechs/internal/access"
)

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

// RepositoryPort defines data access methods for content items.
type RepositoryPort interface {
	List(ctx context.Context, kind Kind, vis access.Visibility, page Page) ([]Item, int, error)
	Get(ctx context.Context, kind Kind, id int64) (Item, error)
	SlugTaken(ctx context.Context, kind Kind, slug string, excludeID int64) (bool, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, item Item) (Item, error)
	Delete(ctx context.Context, kind Kind, id int64) error
}
