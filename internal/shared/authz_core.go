package shared

// Portal permissions referenced by route guards.
const (
	PermViewUser        = "bg_app.view_user"
	PermAddUser         = "bg_app.add_user"
	PermChangeUser      = "bg_app.change_user"
	PermDeleteUser      = "bg_app.delete_user"
	PermManageRoles     = "bg_app.manage_roles"
	PermManageStaff     = "bg_app.manage_staff"
	PermViewPermissions = "bg_app.view_permission"
	PermViewAuditLog    = "bg_app.view_audit_log"

	PermViewAdminDashboard   = "bg_app.view_admin_dashboard"
	PermViewStaffDashboard   = "bg_app.view_staff_dashboard"
	PermViewStudentDashboard = "bg_app.view_student_dashboard"
)

// CoreScopes lists the platform permissions guarded by this module.
func CoreScopes() []string {
	return []string{
		PermViewUser,
		PermAddUser,
		PermChangeUser,
		PermDeleteUser,
		PermManageRoles,
		PermManageStaff,
		PermViewPermissions,
		PermViewAuditLog,
		PermViewAdminDashboard,
		PermViewStaffDashboard,
		PermViewStudentDashboard,
	}
}
