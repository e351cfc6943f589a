package rbac

type Role string
type Action string

const (
	RoleAdmin       Role = "admin"
	RoleSales       Role = "sales"
	RoleArchitect   Role = "architect"
	RoleProcurement Role = "procurement"
	RoleVendor      Role = "vendor"
	RoleCustomer    Role = "customer"
)

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionSchedule Action = "schedule"
	ActionApprove  Action = "approve"
	ActionProcure  Action = "procure"
	ActionChat     Action = "chat"
	ActionAdmin    Action = "admin"
)

// rights is the static role-rights table. Adding a role or action means
// adding a row or column here; nothing else consults role names directly.
var rights = map[Role]map[Action]bool{
	RoleAdmin: {
		ActionRead:     true,
		ActionWrite:    true,
		ActionSchedule: true,
		ActionApprove:  true,
		ActionProcure:  true,
		ActionChat:     true,
		ActionAdmin:    true,
	},
	RoleSales: {
		ActionRead:     true,
		ActionWrite:    true,
		ActionSchedule: true,
		ActionChat:     true,
	},
	RoleArchitect: {
		ActionRead:  true,
		ActionWrite: true,
		ActionChat:  true,
	},
	RoleProcurement: {
		ActionRead:    true,
		ActionWrite:   true,
		ActionProcure: true,
		ActionChat:    true,
	},
	RoleVendor: {
		ActionRead: true,
		ActionChat: true,
	},
	RoleCustomer: {
		ActionRead: true,
		ActionChat: true,
	},
}

func Can(role Role, action Action) bool {
	allowed, ok := rights[role]
	if !ok {
		return false
	}
	return allowed[action]
}

// SelfRegisterable reports whether a role may be chosen at public sign-up.
// Staff roles are provisioned by an admin.
func SelfRegisterable(role Role) bool {
	return role == RoleCustomer || role == RoleVendor
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleSales, RoleArchitect, RoleProcurement, RoleVendor, RoleCustomer:
		return Role(role)
	default:
		return RoleCustomer
	}
}
