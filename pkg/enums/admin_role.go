package enums

// AdminRole is the role claim carried by back-office tokens.
type AdminRole string

const (
	AdminRoleAdmin     AdminRole = "admin"
	AdminRoleInventory AdminRole = "inventory"
)

var validAdminRoles = []AdminRole{AdminRoleAdmin, AdminRoleInventory}

func (r AdminRole) IsValid() bool { return contains(validAdminRoles, r) }

func ParseAdminRole(value string) (AdminRole, error) {
	return parse(validAdminRoles, value, "admin role")
}
