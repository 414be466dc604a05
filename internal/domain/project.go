package domain

import "time"

// Project belongs to exactly one team.
type Project struct {
	ID          string     `json:"id"`
	TeamID      string     `json:"team_id"`
	OwnerID     string     `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

// Label tags issues within a project.
type Label struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomStatus is a project-defined kanban column.
type CustomStatus struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Position  int       `json:"position"`
	WIPLimit  *int      `json:"wip_limit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
