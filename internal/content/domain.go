// Package content serves the owned site resources (courses, blogs, FAQs,
// sliders, vacancies, team members) with row-level access rules.
package content

import (
	"errors"
	"fmt"
	"time"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
)

// Kind names one resource collection.
type Kind string

const (
	KindCourse  Kind = "course"
	KindBlog    Kind = "blog"
	KindFAQ     Kind = "faq"
	KindSlider  Kind = "slider"
	KindVacancy Kind = "vacancy"
	KindTeam    Kind = "team"
)

// KindSpec binds a Kind to its permission model and listing rules.
type KindSpec struct {
	App   string
	Model string
	// OwnerEdit lets authors change and delete their own rows without the model permission.
	OwnerEdit bool
	// ByDisplayOrder lists rows by display order instead of newest first.
	ByDisplayOrder bool
}

var specs = map[Kind]KindSpec{
	KindCourse:  {App: "course_app", Model: "course", OwnerEdit: true},
	KindBlog:    {App: "blog_app", Model: "blog", OwnerEdit: true},
	KindFAQ:     {App: "faq_app", Model: "faq", OwnerEdit: true, ByDisplayOrder: true},
	KindSlider:  {App: "faq_app", Model: "slider", ByDisplayOrder: true},
	KindVacancy: {App: "vacancy_app", Model: "vacancy", OwnerEdit: true},
	KindTeam:    {App: "teams_app", Model: "teams", OwnerEdit: true, ByDisplayOrder: true},
}

// Kinds lists every kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindCourse, KindBlog, KindFAQ, KindSlider, KindVacancy, KindTeam}
}

// ParseKind resolves a kind from its URL form.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if _, ok := specs[k]; !ok {
		return "", fmt.Errorf("%w: unknown content kind %q", httpx.ErrNotFound, raw)
	}
	return k, nil
}

// Spec returns the KindSpec of k.
func (k Kind) Spec() KindSpec { return specs[k] }

// Permission builds the permission guarding action on k, e.g. blog_app.change_blog.
func (k Kind) Permission(action string) string {
	s := specs[k]
	return access.PermissionName(s.App, action, s.Model)
}

// Item is one row of any kind.
type Item struct {
	ID           int64     `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Body         string    `json:"body"`
	Owner        int64     `json:"owner_id"`
	DisplayOrder int       `json:"display_order"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OwnerID implements access.Owned.
func (i Item) OwnerID() int64 { return i.Owner }

// Input carries the writable fields of an Item.
type Input struct {
	Title        string `json:"title" validate:"required,max=200"`
	Slug         string `json:"slug" validate:"max=120"`
	Body         string `json:"body"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
	Published    bool   `json:"published"`
}

// DeniedError reports a refused operation together with the decision behind it.
type DeniedError struct {
	Decision access.Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.Reason != "" {
		return e.Decision.Reason
	}
	return access.MsgPermissionDenied
}

func (e *DeniedError) Unwrap() error { return httpx.ErrForbidden }

// IsDenied reports whether err is a *DeniedError.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d)
}
