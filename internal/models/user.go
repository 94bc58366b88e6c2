package models

// UserRole represents the console roles issued by the school backend.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RolePrincipal UserRole = "PRINCIPAL"
	RoleTeacher   UserRole = "TEACHER"
)

// LandingPaths maps each role to the dashboard the console redirects to after sign-in.
var LandingPaths = map[UserRole]string{
	RoleAdmin:     "/admin",
	RolePrincipal: "/principal",
	RoleTeacher:   "/teacher",
}

// LandingPath returns the console route for role, falling back to the login page.
func LandingPath(role UserRole) string {
	if path, ok := LandingPaths[role]; ok {
		return path
	}
	return "/login"
}

// AuthoringRoles may create and edit classes.
var AuthoringRoles = []UserRole{RolePrincipal, RoleAdmin}

// CanAuthorClasses reports whether role is one of AuthoringRoles.
func CanAuthorClasses(role UserRole) bool {
	for _, r := range AuthoringRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
