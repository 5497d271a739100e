package store

import (
	"strings"
	"time"
)

// Task statuses and priorities keep the labels already present in stored data.
const (
	StatusNew        = "новая"
	StatusInProgress = "в работе"
	StatusDone       = "выполнена"

	PriorityHigh   = "высокий"
	PriorityMedium = "средний"
	PriorityLow    = "низкий"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Notification types.
const (
	NotifyTaskAssigned  = "task_assigned"
	NotifyTaskCompleted = "task_completed"
	NotifyTaskDue       = "task"
	NotifyOverdue       = "overdue"
	NotifyCalendar      = "calendar"
	NotifyEventReminder = "event_reminder"
	NotifyTaskDeadline  = "task_deadline"
	NotifySystem        = "system"

	LinkTask     = "task"
	LinkProject  = "project"
	LinkCalendar = "calendar"
)

const UnknownUserName = "Неизвестный пользователь"

type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Password   string    `json:"password"`
	Email      string    `json:"email"`
	Position   string    `json:"position"`
	Department string    `json:"department"`
	Role       string    `json:"role,omitempty"`
	IsAdmin    bool      `json:"isAdmin"`
	IsActive   bool      `json:"isActive"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type ChecklistItem struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type Task struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Creator     string          `json:"creator"`
	AssignedTo  string          `json:"assignedTo,omitempty"`
	CoAssignees []string        `json:"coAssignees"`
	Watchers    []string        `json:"watchers"`
	Deadline    string          `json:"deadline,omitempty"`
	ProjectID   string          `json:"projectId,omitempty"`
	Checklist   []ChecklistItem `json:"checklist"`
	Tags        []string        `json:"tags"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Involves reports whether userID holds any role on the task.
func (t Task) Involves(userID string) bool {
	return t.Creator == userID ||
		t.AssignedTo == userID ||
		contains(t.CoAssignees, userID) ||
		contains(t.Watchers, userID)
}

func (t Task) IsCoAssignee(userID string) bool {
	return contains(t.CoAssignees, userID)
}

func (t Task) IsWatcher(userID string) bool {
	return contains(t.Watchers, userID)
}

func (t Task) IsDone() bool {
	return t.Status == StatusDone
}

type ProjectField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Project struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	StageID     string         `json:"stageId"`
	Fields      []ProjectField `json:"fields"`
	IsCompleted bool           `json:"isCompleted"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type ProjectStage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CalendarEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// Date is YYYY-MM-DD, Time is HH:MM or empty for an all-day event.
	Date      string    `json:"date"`
	Time      string    `json:"time,omitempty"`
	Reminder  int       `json:"reminder"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	IsRead      bool      `json:"isRead"`
}

type Conversation struct {
	ID              string    `json:"id"`
	User1ID         string    `json:"user1Id"`
	User2ID         string    `json:"user2Id"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	LastMessageText string    `json:"lastMessageText"`
	// Unread counts messages not yet read, per recipient id.
	Unread map[string]int `json:"unread,omitempty"`
}

func (c Conversation) Has(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

func (c Conversation) Other(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

func (c Conversation) UnreadFor(userID string) int {
	return c.Unread[userID]
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
	Link      string    `json:"link,omitempty"`
	LinkType  string    `json:"linkType,omitempty"`
	// Dedup keys.
	TaskID           string `json:"taskId,omitempty"`
	EventID          string `json:"eventId,omitempty"`
	NotificationType string `json:"notificationType,omitempty"`
}

// DedupKey identifies reminder-style notifications that must exist at most once.
type DedupKey struct {
	UserID string
	ItemID string
	Kind   string
}

func (n Notification) DedupKey() DedupKey {
	item := n.TaskID
	if item == "" {
		item = n.EventID
	}
	return DedupKey{UserID: n.UserID, ItemID: item, Kind: n.NotificationType}
}

type TemplateData struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    string          `json:"priority"`
	AssignedTo  string          `json:"assignedTo,omitempty"`
	ProjectID   string          `json:"projectId,omitempty"`
	Checklist   []ChecklistItem `json:"checklist"`
	Tags        []string        `json:"tags"`
}

type TaskTemplate struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Data      TemplateData `json:"data"`
	CreatedAt time.Time    `json:"createdAt"`
}

type Settings struct {
	Theme                string `json:"theme"`
	Language             string `json:"language"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	EmailNotifications   bool   `json:"emailNotifications"`
	TaskView             string `json:"taskView"`
	ProjectView          string `json:"projectView"`
	AutoSave             bool   `json:"autoSave"`
}

func DefaultSettings() Settings {
	return Settings{
		Theme:                "light",
		Language:             "ru",
		NotificationsEnabled: true,
		EmailNotifications:   false,
		TaskView:             "kanban",
		ProjectView:          "kanban",
		AutoSave:             true,
	}
}

type Session struct {
	UserID    string    `json:"userId"`
	LoginTime time.Time `json:"loginTime"`
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
