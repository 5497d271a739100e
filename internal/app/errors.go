package app

import (
	"skcrm/core/internal/apperr"
	"skcrm/core/internal/rbac"
)

func errNotLoggedIn() error {
	return apperr.Validation("NOT_LOGGED_IN", "Требуется вход в систему")
}

func errForbidden(action rbac.Action) error {
	return apperr.Validation("FORBIDDEN", "not allowed: "+string(action))
}

func errTaskNotFound(id string) error {
	return apperr.NotFound("TASK_NOT_FOUND", "task "+id+" not found")
}

func errCommentNotFound(id string) error {
	return apperr.NotFound("COMMENT_NOT_FOUND", "comment "+id+" not found")
}
