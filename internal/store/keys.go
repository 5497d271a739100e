package store

// Storage keys. Each holds one JSON snapshot of a whole collection or record.
const (
	KeyUsers          = "crm-users"
	KeyTasks          = "crm-tasks"
	KeyProjects       = "crm-projects"
	KeyProjectStages  = "crm-project-stages"
	KeyComments       = "crm-comments"
	KeyCalendarEvents = "crm-calendar-events"
	KeyMessages       = "crm-messages"
	KeyConversations  = "crm-conversations"
	KeyNotifications  = "crm-notifications"
	KeyCurrentSession = "crm-current-session"
	KeySettings       = "crm-settings"
	KeyThemeMode      = "crm-theme-mode"
	// KeyCurrentUser is the legacy bare user id kept by older builds.
	KeyCurrentUser = "crm-current-user"

	KeyTaskTemplates = "task-templates"
	KeyTasksViewMode = "tasks-view-mode"
	KeyTasksFilter   = "tasks-filter"
	KeyTasksSort     = "tasks-sort"
)

// SnapshotKeys lists the keys included in backups, in a stable order.
// The session is absent, so a restore never logs anyone in.
var SnapshotKeys = []string{
	KeyUsers,
	KeyTasks,
	KeyProjects,
	KeyProjectStages,
	KeyComments,
	KeyCalendarEvents,
	KeyMessages,
	KeyConversations,
	KeyNotifications,
	KeySettings,
	KeyThemeMode,
	KeyTaskTemplates,
	KeyTasksViewMode,
	KeyTasksFilter,
	KeyTasksSort,
}
