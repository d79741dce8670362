package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Service applies the row-level rules on top of the repository.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance. It panics with *access.ConfigurationError
// when registry lacks a permission one of the kinds depends on.
func NewService(repo RepositoryPort, registry *access.Registry, logger *slog.Logger) *Service {
	if registry != nil {
		var perms []string
		for _, k := range Kinds() {
			for _, action := range access.DefaultActions {
				perms = append(perms, k.Permission(action))
			}
		}
		registry.MustValidate(perms...)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns the page of kind visible to p.
func (s *Service) List(ctx context.Context, p *access.Principal, kind Kind, page, perPage int) ([]Item, shared.Pagination, error) {
	if p == nil {
		return nil, shared.Pagination{}, &DeniedError{Decision: access.Decide(nil, access.Request{})}
	}
	if perPage <= 0 || perPage > maxPerPage {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	vis := access.VisibilityFor(p, kind.Permission("view"))
	items, total, err := s.repo.List(ctx, kind, vis, Page{Limit: perPage, Offset: (page - 1) * perPage})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Get returns one item. Rows outside the principal's visibility are reported as not found.
func (s *Service) Get(ctx context.Context, p *access.Principal, kind Kind, id int64) (Item, error) {
	item, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return Item{}, err
	}
	if !access.VisibilityFor(p, kind.Permission("view")).Allows(item) {
		return Item{}, httpx.ErrNotFound
	}
	return item, nil
}

// Create stores a new item owned by p.
func (s *Service) Create(ctx context.Context, p *access.Principal, kind Kind, in Input) (Item, error) {
	if d := access.Decide(p, access.Request{Permissions: []string{kind.Permission("add")}}); !d.Allowed {
		return Item{}, &DeniedError{Decision: d}
	}
	item := Item{Kind: kind, Owner: p.ID}
	if err := s.apply(ctx, &item, in); err != nil {
		return Item{}, err
	}
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.logger.Info("content created", slog.String("kind", string(kind)), slog.Int64("id", created.ID), slog.Int64("owner", p.ID))
	return created, nil
}

// Update changes an item. Authors may edit their own rows when the kind allows it.
func (s *Service) Update(ctx context.Context, p *access.Principal, kind Kind, id int64, in Input) (Item, error) {
	item, err := s.authorize(ctx, p, kind, id, "change")
	if err != nil {
		return Item{}, err
	}
	if err := s.apply(ctx, &item, in); err != nil {
		return Item{}, err
	}
	return s.repo.Update(ctx, item)
}

// Delete removes an item under the same rules as Update.
func (s *Service) Delete(ctx context.Context, p *access.Principal, kind Kind, id int64) error {
	if _, err := s.authorize(ctx, p, kind, id, "delete"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return err
	}
	s.logger.Info("content deleted", slog.String("kind", string(kind)), slog.Int64("id", id), slog.Int64("actor", p.ID))
	return nil
}

func (s *Service) authorize(ctx context.Context, p *access.Principal, kind Kind, id int64, action string) (Item, error) {
	if p == nil {
		return Item{}, &DeniedError{Decision: access.Decide(nil, access.Request{})}
	}
	item, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return Item{}, err
	}
	d := access.Decide(p, access.Request{
		Permissions: []string{kind.Permission(action)},
		Resource:    item,
		AllowOwner:  kind.Spec().OwnerEdit,
	})
	if !d.Allowed {
		return Item{}, &DeniedError{Decision: d}
	}
	return item, nil
}

func (s *Service) apply(ctx context.Context, item *Item, in Input) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", httpx.ErrValidation)
	}
	if in.DisplayOrder < 0 {
		return fmt.Errorf("%w: display order must not be negative", httpx.ErrValidation)
	}
	base := Slugify(in.Slug)
	switch {
	case base == "" && item.Slug != "":
		base = item.Slug
	case base == "":
		base = Slugify(title)
	}
	if base == "" {
		base = string(item.Kind)
	}
	if base != item.Slug {
		slug, err := uniqueSlug(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
			return s.repo.SlugTaken(ctx, item.Kind, candidate, item.ID)
		})
		if err != nil {
			return err
		}
		item.Slug = slug
	}
	item.Title = title
	item.Body = in.Body
	item.DisplayOrder = in.DisplayOrder
	item.Published = in.Published
	return nil
}
