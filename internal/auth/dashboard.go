package auth

import (
	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

// Landing pages.
const (
	AdminDashboardPath   = "/dashboard/admin"
	StaffDashboardPath   = "/dashboard/staff"
	StudentDashboardPath = "/dashboard/student"
	ProfilePath          = "/profile"
)

var dashboards = []struct {
	role       access.RoleName
	permission string
	path       string
}{
	{access.RoleAdmin, shared.PermViewAdminDashboard, AdminDashboardPath},
	{access.RoleStaff, shared.PermViewStaffDashboard, StaffDashboardPath},
	{access.RoleStudent, shared.PermViewStudentDashboard, StudentDashboardPath},
}

// StaffAreaPath is the staff dashboard section gated by c.
func StaffAreaPath(c access.Capability) string {
	return StaffDashboardPath + "/" + string(c)
}

// DashboardPath picks where p lands after login. The role's own dashboard
// wins when its permission is held; otherwise the first dashboard permission
// held, in admin, staff, student order; otherwise the profile page.
func DashboardPath(p *access.Principal) string {
	if p == nil {
		return ProfilePath
	}
	if p.IsSuperuser {
		return AdminDashboardPath
	}
	for _, d := range dashboards {
		if p.HasRole(d.role) && p.HasPermission(d.permission) {
			return d.path
		}
	}
	for _, d := range dashboards {
		if p.HasPermission(d.permission) {
			return d.path
		}
	}
	return ProfilePath
}
