package rbac

import "fmt"

// Module identifies a functional area of the application.
type Module string

// Action identifies an operation within a module.
type Action string

// Module constants.
const (
	ModuleFinance  Module = "finance"
	ModuleTasks    Module = "tasks"
	ModuleCalendar Module = "calendar"
	ModuleShopping Module = "shopping"
	ModuleMessages Module = "messages"
	ModulePets     Module = "pets"
	ModuleVault    Module = "vault"
	ModuleAlerts   Module = "alerts"
	ModuleMembers  Module = "members"
)

// Action constants.
const (
	ActionView            Action = "view"
	ActionCreate          Action = "create"
	ActionEdit            Action = "edit"
	ActionDelete          Action = "delete"
	ActionViewOwnExpenses Action = "viewOwnExpenses"
	ActionEditExpense     Action = "editExpense"
	ActionComplete        Action = "complete"
	ActionSend            Action = "send"
	ActionTriggerPanic    Action = "triggerPanic"
	ActionManage          Action = "manage"
)

var (
	adminOnly   = []Role{RoleAdmin}
	adults      = []Role{RoleAdmin, RoleResponsible}
	fullMembers = []Role{RoleAdmin, RoleResponsible, RoleMember}
	household   = []Role{RoleAdmin, RoleResponsible, RoleMember, RoleSimplified}
	everyone    = []Role{RoleAdmin, RoleResponsible, RoleMember, RoleSimplified, RoleExternal}
)

// permissionMatrix is the single source of fine-grained authorisation truth.
// Membership here is the only thing that grants an action; a high rank in
// the role hierarchy does not. Every (module, action) pair must resolve to a
// non-empty role set; ValidateMatrix enforces that at startup.
var permissionMatrix = map[Module]map[Action][]Role{
	ModuleFinance: {
		ActionView:            fullMembers,
		ActionViewOwnExpenses: household,
		ActionEditExpense:     fullMembers,
		ActionManage:          adults,
	},
	ModuleTasks: {
		ActionView:     household,
		ActionCreate:   fullMembers,
		ActionEdit:     fullMembers,
		ActionComplete: everyone,
		ActionManage:   adults,
	},
	ModuleCalendar: {
		ActionView:   everyone,
		ActionCreate: fullMembers,
		ActionEdit:   fullMembers,
		ActionDelete: adults,
	},
	ModuleShopping: {
		ActionView:   household,
		ActionCreate: household,
		ActionEdit:   fullMembers,
		ActionDelete: fullMembers,
	},
	ModuleMessages: {
		ActionView: household,
		ActionSend: household,
	},
	ModulePets: {
		ActionView: everyone,
		ActionEdit: fullMembers,
	},
	ModuleVault: {
		ActionView:   adults,
		ActionEdit:   adults,
		ActionManage: adminOnly,
	},
	ModuleAlerts: {
		ActionView:         household,
		ActionTriggerPanic: everyone,
		ActionManage:       adults,
	},
	ModuleMembers: {
		ActionView:   household,
		ActionManage: adults,
	},
}

// HasPermission returns true iff role appears in the matrix entry for the
// given module and action. This is a flat membership test: the role
// hierarchy plays no part in it.
func HasPermission(role Role, module Module, action Action) bool {
	actions, ok := permissionMatrix[module]
	if !ok {
		return false
	}
	for _, r := range actions[action] {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateMatrix checks the permission matrix at startup: every
// (module, action) pair must list at least one valid role, so no action is
// silently unreachable.
func ValidateMatrix() error {
	for module, actions := range permissionMatrix {
		if len(actions) == 0 {
			return fmt.Errorf("module %q has no actions", module)
		}
		for action, roles := range actions {
			if len(roles) == 0 {
				return fmt.Errorf("permission %s/%s lists no roles", module, action)
			}
			for _, r := range roles {
				if !IsValidRole(r) {
					return fmt.Errorf("permission %s/%s lists unknown role %q", module, action, r)
				}
			}
		}
	}
	return nil
}
