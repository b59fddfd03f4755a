package project

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project/entity"
	projectrepo "github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project/repo"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/pkg/utilities"
)

const (
	titleMinLen = 3
	titleMaxLen = 30
)

var (
	ErrTitleLength         = apperror.Newf(apperror.KindValidation, "title must be %d to %d characters", titleMinLen, titleMaxLen)
	ErrDescriptionRequired = apperror.New(apperror.KindValidation, "description is required")
	ErrTitleTaken          = apperror.New(apperror.KindConflict, "title must be unique")
	ErrProjectNotFound     = apperror.New(apperror.KindNotFound, "project not found")
	ErrTaskNotFound        = apperror.New(apperror.KindNotFound, "record not found")
)

// Store is the persistence surface the service needs. The sqlx
// implementation lives in the repo package; tests use an in-memory fake.
type Store interface {
	Create(ctx context.Context, p *entity.Project) error
	Upsert(ctx context.Context, p *entity.Project) error
	Get(ctx context.Context, id string) (*entity.Project, error)
	List(ctx context.Context) ([]*entity.Project, error)
	Delete(ctx context.Context, id string) error
	AppendTask(ctx context.Context, projectID string, t *entity.Task) error
	GetTask(ctx context.Context, projectID, taskID string) (*entity.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID, title, description string) (int64, error)
	DeleteTask(ctx context.Context, projectID, taskID string) error
	ReorderTasks(ctx context.Context, projectID string, placements []entity.Placement) error
}

// Service owns project CRUD and the task board operations (board.go).
type Service struct {
	store Store
	newID func() string
}

// NewService wires a Service. Pass a nil store to use the sqlx repo.
func NewService(db *sqlx.DB, store Store) *Service {
	if store == nil {
		store = projectrepo.NewProjectRepo(db)
	}
	return &Service{store: store, newID: utilities.NewKSUID}
}

// validateTitleDescription enforces the shared title/description rules
// used by project and task writes.
func validateTitleDescription(title, description string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < titleMinLen || n > titleMaxLen {
		return ErrTitleLength
	}
	if strings.TrimSpace(description) == "" {
		return ErrDescriptionRequired
	}
	return nil
}

// Create validates and stores a new project with the default board
// layout unless stages are supplied.
func (s *Service) Create(ctx context.Context, title, description string, stages []string) (*entity.Project, error) {
	if err := validateTitleDescription(title, description); err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		stages = append([]string(nil), entity.DefaultStages...)
	}
	p := &entity.Project{
		ID:          s.newID(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Stages:      stages,
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, projectrepo.ErrDuplicate) {
			return nil, ErrTitleTaken
		}
		return nil, apperror.Wrap(apperror.KindStore, "create project", err)
	}
	return p, nil
}

// Get returns one project with its task collection.
func (s *Service) Get(ctx context.Context, id string) (*entity.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, apperror.Wrap(apperror.KindStore, "get project", err)
	}
	return p, nil
}

// List returns all projects without their tasks.
func (s *Service) List(ctx context.Context) ([]*entity.Project, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStore, "list projects", err)
	}
	return out, nil
}

// Update replaces title and description. Updates follow upsert
// semantics: an unknown id creates the project.
func (s *Service) Update(ctx context.Context, id, title, description string) (*entity.Project, error) {
	if err := validateTitleDescription(title, description); err != nil {
		return nil, err
	}
	p := &entity.Project{
		ID:          id,
		Title:       strings.TrimSpace(title),
		Description: description,
		Stages:      append([]string(nil), entity.DefaultStages...),
	}
	if err := s.store.Upsert(ctx, p); err != nil {
		if errors.Is(err, projectrepo.ErrDuplicate) {
			return nil, ErrTitleTaken
		}
		return nil, apperror.Wrap(apperror.KindStore, "update project", err)
	}
	return p, nil
}

// Delete removes a project. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindStore, "delete project", err)
	}
	return nil
}
