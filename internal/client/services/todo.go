package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/models"
	"github.com/dmitrijs2005/gophsync/internal/client/store"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/shared"
	"github.com/google/uuid"
)

var (
	ErrTodoNotFound = errors.New("todo not found")
	ErrAmbiguousID  = errors.New("ambiguous todo id")
)

const (
	fieldTitle     = "title"
	fieldCompleted = "completed"
)

// Todo is the view of a todo record the shell renders.
type Todo struct {
	ID        string
	Title     string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Synced reports whether the server has confirmed the record at least once.
func (t Todo) Synced() bool { return !t.CreatedAt.IsZero() }

func todoFromEntity(e models.Entity) Todo {
	title, _ := e[fieldTitle].(string)
	done, _ := e[fieldCompleted].(bool)
	return Todo{
		ID:        e.ID(),
		Title:     title,
		Completed: done,
		CreatedAt: e.CreatedAt(),
		UpdatedAt: e.UpdatedAt(),
	}
}

// TodoService edits the local todo collection. Every mutation lands in the
// local store immediately; the sync engine delivers it to the server.
type TodoService interface {
	Add(ctx context.Context, title string) (Todo, error)
	Toggle(ctx context.Context, id string) (Todo, error)
	Rename(ctx context.Context, id string, title string) (Todo, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Todo, error)
	// List returns live todos, newest first.
	List(ctx context.Context) []Todo
	// Resolve expands a unique id prefix to the full id.
	Resolve(prefix string) (string, error)
}

type todoService struct {
	store *store.Store
	newID func() string
}

// NewTodoService binds the service to the todo collection's store.
func NewTodoService(s *store.Store) TodoService {
	return &todoService{store: s, newID: uuid.NewString}
}

func (s *todoService) validate(op string, fields models.Entity, partial bool) error {
	return shared.Todo.Validate(op, fields, partial)
}

func (s *todoService) Add(ctx context.Context, title string) (Todo, error) {
	id := s.newID()
	fields := models.Entity{
		common.FieldID: id,
		fieldTitle:     strings.TrimSpace(title),
		fieldCompleted: false,
	}
	if err := s.validate("create", fields, false); err != nil {
		return Todo{}, err
	}
	if err := s.store.Set(id, fields); err != nil {
		return Todo{}, fmt.Errorf("saving error: %w", err)
	}
	return s.Get(ctx, id)
}

// live returns the record unless it is missing or soft-deleted.
func (s *todoService) live(id string) (models.Entity, error) {
	e, ok := s.store.Get(id)
	if !ok || e.Deleted() {
		return nil, fmt.Errorf("%w: %s", ErrTodoNotFound, id)
	}
	return e, nil
}

func (s *todoService) Toggle(ctx context.Context, id string) (Todo, error) {
	var out models.Entity
	err := s.store.Batch(func(tx *store.Tx) error {
		e, ok := tx.Get(id)
		if !ok || e.Deleted() {
			return fmt.Errorf("%w: %s", ErrTodoNotFound, id)
		}
		done, _ := e[fieldCompleted].(bool)
		if err := tx.Set(id, models.Entity{fieldCompleted: !done}); err != nil {
			return err
		}
		out, _ = tx.Get(id)
		return nil
	})
	if err != nil {
		return Todo{}, err
	}
	return todoFromEntity(out), nil
}

func (s *todoService) Rename(ctx context.Context, id string, title string) (Todo, error) {
	if _, err := s.live(id); err != nil {
		return Todo{}, err
	}
	fields := models.Entity{common.FieldID: id, fieldTitle: strings.TrimSpace(title)}
	if err := s.validate("update", fields, true); err != nil {
		return Todo{}, err
	}
	if err := s.store.Set(id, fields); err != nil {
		return Todo{}, fmt.Errorf("saving error: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *todoService) Delete(ctx context.Context, id string) error {
	if _, err := s.live(id); err != nil {
		return err
	}
	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("error deleting todo: %w", err)
	}
	return nil
}

func (s *todoService) Get(ctx context.Context, id string) (Todo, error) {
	e, err := s.live(id)
	if err != nil {
		return Todo{}, err
	}
	return todoFromEntity(e), nil
}

func (s *todoService) List(ctx context.Context) []Todo {
	var out []Todo
	for e := range s.store.List(store.WithoutDeleted(), store.SortBy(store.ByCreatedAtDesc)) {
		out = append(out, todoFromEntity(e))
	}
	return out
}

func (s *todoService) Resolve(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrTodoNotFound
	}
	if e, ok := s.store.Get(prefix); ok && !e.Deleted() {
		return prefix, nil
	}
	var found string
	for e := range s.store.List(store.WithoutDeleted()) {
		if !strings.HasPrefix(e.ID(), prefix) {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
		}
		found = e.ID()
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", ErrTodoNotFound, prefix)
	}
	return found, nil
}
