package access

// Capability is a staff-area capability.
type Capability string

// Staff capabilities.
const (
	CapManageStudents  Capability = "manage_students"
	CapManageFinancial Capability = "manage_financial"
	CapViewReports     Capability = "view_reports"
	CapManageContent   Capability = "manage_content"
	CapManageCourses   Capability = "manage_courses"
)

// StaffCapabilities lists every staff capability in display order.
func StaffCapabilities() []Capability {
	return []Capability{CapManageStudents, CapManageFinancial, CapViewReports, CapManageContent, CapManageCourses}
}

// Permission returns the permission string backing the capability.
func (c Capability) Permission() string {
	return "bg_app." + string(c)
}

// DecideStaff evaluates access to a staff-only area. Superusers and the admin
// role pass; other principals must be staff and hold the capability.
func DecideStaff(p *Principal, c Capability) Decision {
	if p == nil {
		return Decision{Rule: RuleUnauthenticated, Reason: MsgLoginRequired}
	}
	if p.IsSuperuser {
		return Decision{Allowed: true, Rule: RuleSuperuser}
	}
	if p.HasRole(RoleAdmin) {
		return Decision{Allowed: true, Rule: RuleRole}
	}
	if !p.IsStaff && !p.HasRole(RoleStaff) {
		return Decision{Rule: RuleNone, Reason: MsgStaffOnly}
	}
	if p.HasPermission(c.Permission()) {
		return Decision{Allowed: true, Rule: RulePermission}
	}
	return Decision{Rule: RuleNone, Reason: MsgStaffCapability}
}
