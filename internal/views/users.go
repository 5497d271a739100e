package views

import (
	"strings"

	"skcrm/core/internal/store"
)

// User list filters.
const (
	UsersAll      = "all"
	UsersActive   = "active"
	UsersAdmin    = "admin"
	UsersInactive = "inactive"
)

// IsAdmin treats either the role or the flag as admin.
func IsAdmin(u store.User) bool {
	return u.IsAdmin || u.Role == store.RoleAdmin
}

// FilterUsers applies filter and then query over username, email, full
// name, position and department.
func FilterUsers(users []store.User, filter, query string) []store.User {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]store.User, 0, len(users))
	for _, u := range users {
		switch filter {
		case UsersActive:
			if !u.IsActive {
				continue
			}
		case UsersAdmin:
			if !IsAdmin(u) {
				continue
			}
		case UsersInactive:
			if u.IsActive {
				continue
			}
		}
		if q != "" && !userMatches(u, q) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func userMatches(u store.User, q string) bool {
	for _, field := range []string{u.Username, u.Email, u.FullName(), u.Position, u.Department} {
		if containsFold(field, q) {
			return true
		}
	}
	return false
}

// Person is the display data of a referenced user.
type Person struct {
	ID          string
	Username    string
	DisplayName string
	Avatar      string
	Known       bool
}

// ResolveUser looks id up in users; unknown ids get the placeholder name.
func ResolveUser(users []store.User, id string) Person {
	for _, u := range users {
		if u.ID == id {
			return Person{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName(), Avatar: u.Avatar, Known: true}
		}
	}
	return Person{ID: id, Username: store.UnknownUserName, DisplayName: store.UnknownUserName}
}
