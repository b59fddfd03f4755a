package project

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project/entity"
	projectrepo "github.com/ovaphlow/pitchfork/service-taskboard-go/internal/project/repo"
)

// fakeStore is an in-memory Store used by the service and handler
// tests. It mirrors the repo contract: sql.ErrNoRows for missing rows,
// repo.ErrDuplicate for title collisions, silent skips on unknown ids.
type fakeStore struct {
	projects map[string]*entity.Project
}

func newFakeStore() *fakeStore {
	return &fakeStore{projects: map[string]*entity.Project{}}
}

func (s *fakeStore) titleTaken(title, exceptID string) bool {
	for id, p := range s.projects {
		if p.Title == title && id != exceptID {
			return true
		}
	}
	return false
}

func (s *fakeStore) Create(ctx context.Context, p *entity.Project) error {
	if _, ok := s.projects[p.ID]; ok || s.titleTaken(p.Title, p.ID) {
		return projectrepo.ErrDuplicate
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *fakeStore) Upsert(ctx context.Context, p *entity.Project) error {
	if s.titleTaken(p.Title, p.ID) {
		return projectrepo.ErrDuplicate
	}
	existing, ok := s.projects[p.ID]
	if !ok {
		return s.Create(ctx, p)
	}
	existing.Title = p.Title
	existing.Description = p.Description
	existing.UpdatedAt = time.Now()
	p.CreatedAt, p.UpdatedAt = existing.CreatedAt, existing.UpdatedAt
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*entity.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	cp.Tasks = append([]entity.Task(nil), p.Tasks...)
	sort.SliceStable(cp.Tasks, func(i, j int) bool {
		if cp.Tasks[i].Order != cp.Tasks[j].Order {
			return cp.Tasks[i].Order < cp.Tasks[j].Order
		}
		return cp.Tasks[i].Index < cp.Tasks[j].Index
	})
	return &cp, nil
}

func (s *fakeStore) List(ctx context.Context) ([]*entity.Project, error) {
	out := []*entity.Project{}
	for _, p := range s.projects {
		cp := *p
		cp.Tasks = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	delete(s.projects, id)
	return nil
}

func (s *fakeStore) AppendTask(ctx context.Context, projectID string, t *entity.Task) error {
	p, ok := s.projects[projectID]
	if !ok {
		return sql.ErrNoRows
	}
	maxIdx := -1
	for _, existing := range p.Tasks {
		if existing.Index > maxIdx {
			maxIdx = existing.Index
		}
	}
	t.ProjectID = projectID
	t.Order = len(p.Tasks)
	t.Index = maxIdx + 1
	p.Tasks = append(p.Tasks, *t)
	return nil
}

func (s *fakeStore) GetTask(ctx context.Context, projectID, taskID string) (*entity.Task, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	for i := range p.Tasks {
		if p.Tasks[i].ID == taskID {
			cp := p.Tasks[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) UpdateTask(ctx context.Context, projectID, taskID, title, description string) (int64, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return 0, nil
	}
	for i := range p.Tasks {
		if p.Tasks[i].ID == taskID {
			p.Tasks[i].Title = title
			p.Tasks[i].Description = description
			return 1, nil
		}
	}
	return 0, nil
}

func (s *fakeStore) DeleteTask(ctx context.Context, projectID, taskID string) error {
	p, ok := s.projects[projectID]
	if !ok {
		return nil
	}
	kept := p.Tasks[:0]
	for _, t := range p.Tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	p.Tasks = kept
	return nil
}

func (s *fakeStore) ReorderTasks(ctx context.Context, projectID string, placements []entity.Placement) error {
	p, ok := s.projects[projectID]
	if !ok {
		return nil
	}
	for _, pl := range placements {
		for i := range p.Tasks {
			if p.Tasks[i].ID == pl.TaskID {
				p.Tasks[i].Stage = pl.Stage
				p.Tasks[i].Order = pl.Order
			}
		}
	}
	return nil
}

// newTestService builds a Service on the fake store with deterministic
// sequential task ids.
func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	svc := NewService(nil, store)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return svc, store
}
