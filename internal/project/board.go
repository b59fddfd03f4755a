package project

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project/entity"
)

// TaskRef carries the task identity inside a board column payload.
// Clients send whole task objects; only the id matters here.
type TaskRef struct {
	ID string `json:"_id"`
}

// Column is one named stage with its tasks in display order.
type Column struct {
	Name  string    `json:"name"`
	Items []TaskRef `json:"items"`
}

// Board maps an arbitrary payload key to a column. The column's Name
// field is authoritative for the stage; the map key is a fallback.
type Board map[string]Column

// AddTask appends a task to the project's collection. The new task gets
// order = current task count, index = max existing index + 1 (0 when the
// project has no tasks) and lands in the first configured stage.
func (s *Service) AddTask(ctx context.Context, projectID, title, description string) (*entity.Task, error) {
	if err := validateTitleDescription(title, description); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stage := entity.DefaultStages[0]
	if len(p.Stages) > 0 {
		stage = p.Stages[0]
	}
	t := &entity.Task{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		Stage:       stage,
	}
	if err := s.store.AppendTask(ctx, projectID, t); err != nil {
		return nil, apperror.Wrap(apperror.KindStore, "append task", err)
	}
	return t, nil
}

// GetTask returns one task from the project's collection.
func (s *Service) GetTask(ctx context.Context, projectID, taskID string) (*entity.Task, error) {
	t, err := s.store.GetTask(ctx, projectID, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, apperror.Wrap(apperror.KindStore, "get task", err)
	}
	return t, nil
}

// UpdateTask rewrites title and description of the matching task. The
// board fields (stage, order, index) are left untouched.
func (s *Service) UpdateTask(ctx context.Context, projectID, taskID, title, description string) error {
	if err := validateTitleDescription(title, description); err != nil {
		return err
	}
	if _, err := s.store.UpdateTask(ctx, projectID, taskID, title, description); err != nil {
		return apperror.Wrap(apperror.KindStore, "update task", err)
	}
	return nil
}

// DeleteTask removes a task from the project. Unknown ids succeed.
func (s *Service) DeleteTask(ctx context.Context, projectID, taskID string) error {
	if err := s.store.DeleteTask(ctx, projectID, taskID); err != nil {
		return apperror.Wrap(apperror.KindStore, "delete task", err)
	}
	return nil
}

// Reorder applies a whole board state to the project's tasks. Every task
// listed under a column gets that column as its stage and its zero-based
// list position as its order; creation indexes are never touched. Stage
// names must belong to the project's configured board. Task ids absent
// from the project are skipped silently. The batch is applied in one
// transaction and the applied placements are returned in a stable order.
func (s *Service) Reorder(ctx context.Context, projectID string, board Board) ([]entity.Placement, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(board))
	for k := range board {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	placements := make([]entity.Placement, 0)
	for _, k := range keys {
		col := board[k]
		stage := col.Name
		if stage == "" {
			stage = k
		}
		if !p.HasStage(stage) {
			return nil, apperror.Newf(apperror.KindValidation, "unknown stage %q", stage)
		}
		for i, ref := range col.Items {
			if ref.ID == "" {
				continue
			}
			placements = append(placements, entity.Placement{TaskID: ref.ID, Stage: stage, Order: i})
		}
	}

	if err := s.store.ReorderTasks(ctx, projectID, placements); err != nil {
		return nil, apperror.Wrap(apperror.KindStore, "reorder tasks", err)
	}
	return placements, nil
}
