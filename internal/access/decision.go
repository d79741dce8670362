package access

import "fmt"

// Deny messages shown to users.
const (
	MsgLoginRequired    = "Please log in to continue."
	MsgPermissionDenied = "You don't have permission to access this page."
	MsgStaffOnly        = "This section is for staff members only."
	MsgStaffCapability  = "You don't have sufficient staff permissions to access this page."
)

// Match selects how multiple required permissions combine.
type Match int

const (
	// MatchAny allows when at least one permission is held.
	MatchAny Match = iota
	// MatchAll allows only when every permission is held.
	MatchAll
)

// Rule identifies which rule produced a decision.
type Rule string

const (
	RuleUnauthenticated Rule = "unauthenticated"
	RuleAuthenticated   Rule = "authenticated"
	RuleSuperuser       Rule = "superuser"
	RulePermission      Rule = "permission"
	RuleRole            Rule = "role"
	RuleOwnership       Rule = "ownership"
	RuleNone            Rule = "none"
)

// Request describes the requirement of one protected operation.
type Request struct {
	Permissions []string
	Match       Match
	Role        RoleName
	Resource    Owned
	// AllowOwner enables the row-level ownership fallback for this operation.
	AllowOwner bool
}

// Decision is the outcome of evaluating a principal against a Request.
type Decision struct {
	Allowed bool
	Rule    Rule
	Reason  string
}

// Decide evaluates req for p. Rules are applied in a fixed order: superuser,
// permission, role, ownership. Staff status grants nothing by itself.
func Decide(p *Principal, req Request) Decision {
	if p == nil {
		return Decision{Rule: RuleUnauthenticated, Reason: MsgLoginRequired}
	}
	if p.IsSuperuser {
		return Decision{Allowed: true, Rule: RuleSuperuser}
	}
	if perms := compact(req.Permissions); len(perms) > 0 && holds(p, perms, req.Match) {
		return Decision{Allowed: true, Rule: RulePermission}
	}
	if req.Role != "" && p.HasRole(req.Role) {
		return Decision{Allowed: true, Rule: RuleRole}
	}
	if req.AllowOwner && req.Resource != nil && req.Resource.OwnerID() == p.ID {
		return Decision{Allowed: true, Rule: RuleOwnership}
	}
	return Decision{Rule: RuleNone, Reason: denyReason(req)}
}

// Allow is shorthand for Decide(p, Request{Permissions: []string{perm}}).Allowed.
func Allow(p *Principal, perm string) bool {
	return Decide(p, Request{Permissions: []string{perm}}).Allowed
}

func holds(p *Principal, perms []string, match Match) bool {
	if match == MatchAll {
		for _, perm := range perms {
			if !p.HasPermission(perm) {
				return false
			}
		}
		return true
	}
	for _, perm := range perms {
		if p.HasPermission(perm) {
			return true
		}
	}
	return false
}

func denyReason(req Request) string {
	if req.Role != "" && len(compact(req.Permissions)) == 0 && req.Resource == nil {
		return fmt.Sprintf("Access restricted to %s role.", req.Role)
	}
	return MsgPermissionDenied
}

func compact(perms []string) []string {
	out := perms[:0:0]
	for _, p := range perms {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
