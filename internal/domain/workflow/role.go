package workflow

// Role identifies the staff role driving a transition. Roles are carried
// with every request and checked at validation time; they are never stored
// on the claim itself.
type Role string

const (
	RolePreauthExecutive Role = "preauth_executive"
	RoleProcessor        Role = "processor"
	RoleAdmin            Role = "admin"
)

var validRoles = map[Role]bool{
	RolePreauthExecutive: true,
	RoleProcessor:        true,
	RoleAdmin:            true,
}

// Roles returns every valid role.
func Roles() []Role {
	return []Role{RolePreauthExecutive, RoleProcessor, RoleAdmin}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is a known staff role
func (r Role) IsValid() bool {
	return validRoles[r]
}
