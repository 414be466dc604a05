package domain

import "time"

// Issue priorities.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// StatusBacklog is the default status for new issues and StatusDone marks
// completion. The status domain is otherwise open: projects may define
// custom columns.
const (
	StatusBacklog = "Backlog"
	StatusDone    = "Done"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Issue belongs to exactly one project. The two AI slots are persisted results
// that stay valid until overwritten.
type Issue struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssigneeID  *string    `json:"assignee_user_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Position    int        `json:"position"`

	AISummary            *string    `json:"ai_summary,omitempty"`
	AISummaryCachedAt    *time.Time `json:"ai_summary_cached_at,omitempty"`
	AISuggestion         *string    `json:"ai_suggestion,omitempty"`
	AISuggestionCachedAt *time.Time `json:"ai_suggestion_cached_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// IssueRef is the (id, title) projection used by duplicate detection.
type IssueRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SimilarIssue is a duplicate-detection hit. Similarity is a percentage.
type SimilarIssue struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// Comment belongs to one issue and one authoring user.
type Comment struct {
	ID        string     `json:"id"`
	IssueID   string     `json:"issue_id"`
	UserID    string     `json:"user_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}
