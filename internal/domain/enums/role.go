package enums

type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// CanModerate reports whether the role may ban or delete other accounts.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}
