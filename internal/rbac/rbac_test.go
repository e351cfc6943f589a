package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "customer read", role: RoleCustomer, action: ActionRead, allow: true},
		{name: "customer write", role: RoleCustomer, action: ActionWrite, allow: false},
		{name: "vendor chat", role: RoleVendor, action: ActionChat, allow: true},
		{name: "vendor procure", role: RoleVendor, action: ActionProcure, allow: false},
		{name: "sales schedule", role: RoleSales, action: ActionSchedule, allow: true},
		{name: "sales approve", role: RoleSales, action: ActionApprove, allow: false},
		{name: "architect write", role: RoleArchitect, action: ActionWrite, allow: true},
		{name: "architect procure", role: RoleArchitect, action: ActionProcure, allow: false},
		{name: "procurement procure", role: RoleProcurement, action: ActionProcure, allow: true},
		{name: "procurement approve", role: RoleProcurement, action: ActionApprove, allow: false},
		{name: "admin approve", role: RoleAdmin, action: ActionApprove, allow: true},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("intern"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestSelfRegisterable(t *testing.T) {
	open := map[Role]bool{RoleCustomer: true, RoleVendor: true}
	for _, role := range []Role{RoleAdmin, RoleSales, RoleArchitect, RoleProcurement, RoleVendor, RoleCustomer} {
		if got := SelfRegisterable(role); got != open[role] {
			t.Fatalf("SelfRegisterable(%q) = %v, want %v", role, got, open[role])
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("architect"); got != RoleArchitect {
		t.Fatalf("Normalize(architect) = %q", got)
	}
	if got := Normalize("superuser"); got != RoleCustomer {
		t.Fatalf("Normalize(superuser) = %q, want customer fallback", got)
	}
}
