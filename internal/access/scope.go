package access

// Visibility is the row filter a listing must apply for one principal.
type Visibility struct {
	All     bool
	OwnerID int64
}

// VisibilityFor resolves which rows of a collection p may see. Superusers and
// holders of viewPermission see everything; everyone else sees only rows they own.
func VisibilityFor(p *Principal, viewPermission string) Visibility {
	if p == nil {
		return Visibility{}
	}
	if p.IsSuperuser || p.HasPermission(viewPermission) {
		return Visibility{All: true}
	}
	return Visibility{OwnerID: p.ID}
}

// Allows reports whether item passes the filter.
func (v Visibility) Allows(item Owned) bool {
	if v.All {
		return true
	}
	if item == nil || v.OwnerID == 0 {
		return false
	}
	return item.OwnerID() == v.OwnerID
}

// Scope returns the subset of items visible to p, preserving input order.
// The input slice is never modified.
func Scope[T Owned](p *Principal, items []T, viewPermission string) []T {
	vis := VisibilityFor(p, viewPermission)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if vis.Allows(item) {
			out = append(out, item)
		}
	}
	return out
}
