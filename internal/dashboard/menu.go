package dashboard

import "github.com/microtasks/backend/internal/models"

// MenuItem is one entry of the dashboard navigation.
type MenuItem struct {
	Label string `json:"label"`
	Route string `json:"route"`
}

var menus = map[models.Role][]MenuItem{
	models.RoleWorker: {
		{"Home", "/dashboard"},
		{"Task List", "/dashboard/tasks"},
		{"My Submissions", "/dashboard/submissions"},
		{"Withdrawals", "/dashboard/withdrawals"},
	},
	models.RoleBuyer: {
		{"Home", "/dashboard"},
		{"Add New Task", "/dashboard/add-task"},
		{"My Tasks", "/dashboard/my-tasks"},
		{"Purchase Coins", "/dashboard/purchase-coins"},
		{"Payment History", "/dashboard/payment-history"},
	},
	models.RoleAdmin: {
		{"Home", "/dashboard"},
		{"Manage Users", "/dashboard/manage-users"},
		{"Manage Tasks", "/dashboard/manage-tasks"},
		{"Withdrawals", "/dashboard/withdraw-requests"},
	},
}

// MenuFor returns a copy of the role's menu, or nil for an unknown role.
func MenuFor(role models.Role) []MenuItem {
	m, ok := menus[role]
	if !ok {
		return nil
	}
	return append([]MenuItem(nil), m...)
}
