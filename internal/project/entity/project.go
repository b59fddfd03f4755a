package entity

import "time"

// DefaultStages is the board layout a project starts with unless the
// creator supplies one. New tasks land in the first stage.
var DefaultStages = []string{"Requested", "To Do", "In Progress", "Done"}

// Project owns an ordered collection of tasks and the list of board
// stages its tasks may occupy.
type Project struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Stages      []string  `db:"-" json:"stages"`
	Tasks       []Task    `db:"-" json:"tasks,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// HasStage reports whether name is a configured board column.
func (p *Project) HasStage(name string) bool {
	for _, s := range p.Stages {
		if s == name {
			return true
		}
	}
	return false
}

// Task lives inside exactly one project; it has no identity outside it.
// Index is the permanent creation-order identifier, assigned once and
// never reused. Order is the mutable zero-based display position within
// the task's stage.
type Task struct {
	ID          string `db:"id" json:"id"`
	ProjectID   string `db:"project_id" json:"-"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	Stage       string `db:"stage" json:"stage"`
	Order       int    `db:"ord" json:"order"`
	Index       int    `db:"idx" json:"index"`
}

// Placement is one stage/order assignment produced by a board reorder.
type Placement struct {
	TaskID string `json:"taskId"`
	Stage  string `json:"stage"`
	Order  int    `json:"order"`
}
