package rbac

import "skcrm/core/internal/store"

type Role string
type Action string

const (
	RoleUser  Role = store.RoleUser
	RoleAdmin Role = store.RoleAdmin
)

const (
	ActionUserManage    Action = "user.manage"
	ActionUserSearch    Action = "user.search"
	ActionSettingsAdmin Action = "settings.admin"
	ActionTaskWrite     Action = "task.write"
	ActionProjectWrite  Action = "project.write"
	ActionCalendarWrite Action = "calendar.write"
	ActionMessageSend   Action = "message.send"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		switch action {
		case ActionTaskWrite, ActionProjectWrite, ActionCalendarWrite, ActionMessageSend:
			return true
		}
		return false
	default:
		return false
	}
}

// Normalize maps a stored user to its role. The isAdmin flag wins over the
// role string; anything unknown is a plain user.
func Normalize(u store.User) Role {
	if u.IsAdmin || Role(u.Role) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Allowed is Can for a stored user.
func Allowed(u store.User, action Action) bool {
	return Can(Normalize(u), action)
}
