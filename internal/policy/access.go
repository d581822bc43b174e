// Package policy decides which acting identity may perform which operation on
// which account. Every function is pure and never fails; callers turn a
// negative answer into the matching error.
package policy

import "user-api/internal/domain"

// Action names a protected user-management operation.
type Action int

const (
	ActionReadProfile Action = iota
	ActionUpdateProfile
	ActionChangePassword
	ActionChangeLogin
	ActionCreate
	ActionList
	ActionSoftDelete
	ActionRestore
	ActionHardDelete
)

var actionNames = map[Action]string{
	ActionReadProfile:    "read profile",
	ActionUpdateProfile:  "update profile",
	ActionChangePassword: "change password",
	ActionChangeLogin:    "change login",
	ActionCreate:         "create user",
	ActionList:           "list users",
	ActionSoftDelete:     "delete user",
	ActionRestore:        "restore user",
	ActionHardDelete:     "purge user",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown action"
}

// SelfService reports whether an account owner may perform the action on
// their own record without admin rights.
func (a Action) SelfService() bool {
	switch a {
	case ActionReadProfile, ActionUpdateProfile, ActionChangePassword, ActionChangeLogin:
		return true
	default:
		return false
	}
}

// Allowed reports whether actor may perform action on target. target may be
// nil for actions that do not address a single record.
func Allowed(actor domain.Identity, action Action, target *domain.User) bool {
	if actor.Anonymous() {
		return false
	}
	if actor.Admin {
		return true
	}
	if !action.SelfService() || target == nil {
		return false
	}
	return IsOwner(actor, target)
}

// AllowedLogin is Allowed for a record known only by its login. It needs no
// lookup, so callers can refuse before revealing whether the login exists.
func AllowedLogin(actor domain.Identity, action Action, login string) bool {
	if actor.Anonymous() {
		return false
	}
	if actor.Admin {
		return true
	}
	return action.SelfService() && domain.SameLogin(actor.Login, login)
}

// IsOwner reports whether target is the actor's own account.
func IsOwner(actor domain.Identity, target *domain.User) bool {
	return !actor.Anonymous() && target != nil && domain.SameLogin(actor.Login, target.Login)
}

func CanCreate(actor domain.Identity) bool {
	return Allowed(actor, ActionCreate, nil)
}

func CanList(actor domain.Identity) bool {
	return Allowed(actor, ActionList, nil)
}
