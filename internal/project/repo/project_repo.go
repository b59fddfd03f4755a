package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project/entity"
)

// ErrDuplicate is returned when an insert or update violates a unique
// constraint (project title, user fields). In-memory fakes used by the
// service tests return the same sentinel.
var ErrDuplicate = errors.New("duplicate key")

// ProjectRepo provides data access for projects and their tasks.
// A task row always belongs to exactly one project; deleting the project
// cascades to its tasks.
type ProjectRepo struct {
	db *sqlx.DB
}

func NewProjectRepo(db *sqlx.DB) *ProjectRepo { return &ProjectRepo{db: db} }

// EnsureTables creates the projects and tasks tables if not exists
// (idempotent). Prefer migrations in production.
func (r *ProjectRepo) EnsureTables(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS projects (
  id varchar(32) PRIMARY KEY,
  title TEXT UNIQUE NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  stages TEXT[] NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS tasks (
  id varchar(32) PRIMARY KEY,
  project_id varchar(32) NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  stage TEXT NOT NULL,
  ord INT NOT NULL,
  idx INT NOT NULL,
  UNIQUE (project_id, idx)
);
CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new project row.
func (r *ProjectRepo) Create(ctx context.Context, p *entity.Project) error {
	const q = `INSERT INTO projects (id, title, description, stages)
		VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, q, p.ID, p.Title, p.Description, pq.Array(p.Stages))
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return translate(err)
	}
	return nil
}

// Upsert replaces title/description of the project, creating the row
// when the id does not exist yet.
func (r *ProjectRepo) Upsert(ctx context.Context, p *entity.Project) error {
	const q = `INSERT INTO projects (id, title, description, stages)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description, updated_at=NOW()
		RETURNING created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, q, p.ID, p.Title, p.Description, pq.Array(p.Stages))
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return translate(err)
	}
	return nil
}

// Get loads a project with its full task collection, tasks ordered by
// display position then creation index.
func (r *ProjectRepo) Get(ctx context.Context, id string) (*entity.Project, error) {
	const q = `SELECT id, title, description, stages, created_at, updated_at FROM projects WHERE id=$1`
	var p entity.Project
	var stages pq.StringArray
	row := r.db.QueryRowxContext(ctx, q, id)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &stages, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Stages = []string(stages)

	const tq = `SELECT id, project_id, title, description, stage, ord, idx
		FROM tasks WHERE project_id=$1 ORDER BY ord, idx`
	if err := r.db.SelectContext(ctx, &p.Tasks, tq, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all projects without their task collections to keep the
// list payload small.
func (r *ProjectRepo) List(ctx context.Context) ([]*entity.Project, error) {
	const q = `SELECT id, title, description, stages, created_at, updated_at FROM projects ORDER BY created_at`
	rows, err := r.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*entity.Project{}
	for rows.Next() {
		var p entity.Project
		var stages pq.StringArray
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &stages, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Stages = []string(stages)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Delete removes a project and, by cascade, its tasks. Deleting an
// unknown id is not an error.
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	return err
}

// AppendTask inserts a task computing its board position in the same
// statement: order is the current task count and index is one past the
// highest index ever assigned in the project (indexes are never reused).
func (r *ProjectRepo) AppendTask(ctx context.Context, projectID string, t *entity.Task) error {
	const q = `INSERT INTO tasks (id, project_id, title, description, stage, ord, idx)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COUNT(*) FROM tasks WHERE project_id=$2),
			(SELECT COALESCE(MAX(idx)+1, 0) FROM tasks WHERE project_id=$2))
		RETURNING ord, idx`
	row := r.db.QueryRowxContext(ctx, q, t.ID, projectID, t.Title, t.Description, t.Stage)
	if err := row.Scan(&t.Order, &t.Index); err != nil {
		return translate(err)
	}
	t.ProjectID = projectID
	return nil
}

// GetTask returns the task matching (projectID, taskID) or sql.ErrNoRows.
func (r *ProjectRepo) GetTask(ctx context.Context, projectID, taskID string) (*entity.Task, error) {
	const q = `SELECT id, project_id, title, description, stage, ord, idx
		FROM tasks WHERE project_id=$1 AND id=$2`
	var t entity.Task
	if err := r.db.GetContext(ctx, &t, q, projectID, taskID); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask rewrites title and description only; stage, order and index
// are never touched here.
func (r *ProjectRepo) UpdateTask(ctx context.Context, projectID, taskID, title, description string) (int64, error) {
	const q = `UPDATE tasks SET title=$3, description=$4 WHERE project_id=$1 AND id=$2`
	res, err := r.db.ExecContext(ctx, q, projectID, taskID, title, description)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteTask removes the task from the project's collection. Deleting an
// unknown id is not an error.
func (r *ProjectRepo) DeleteTask(ctx context.Context, projectID, taskID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE project_id=$1 AND id=$2`, projectID, taskID)
	return err
}

// ReorderTasks applies a batch of stage/order assignments in a single
// transaction so concurrent reorders cannot interleave half a board.
// Assignments naming a task id absent from the project affect zero rows
// and are skipped silently.
func (r *ProjectRepo) ReorderTasks(ctx context.Context, projectID string, placements []entity.Placement) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `UPDATE tasks SET stage=$3, ord=$4 WHERE project_id=$1 AND id=$2`
	for _, pl := range placements {
		if _, err := tx.ExecContext(ctx, q, projectID, pl.TaskID, pl.Stage, pl.Order); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// translate maps driver-level unique violations onto ErrDuplicate.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
