// Package todo holds the client-side state of the todo collection: a pure
// reducer over tagged actions and a Container that performs the remote calls
// and dispatches the resulting actions.
package todo

import "github.com/Makepad-fr/tada-cloud/internal/model"

// State is what presentation surfaces render.
type State struct {
	Items   []model.Todo
	Loading bool
	Error   string // empty when no error is shown
}

// Find returns the item with id.
func (s State) Find(id string) (model.Todo, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Todo{}, false
}

// Action is a state change request. The set of actions is closed.
type Action interface {
	action()
}

// AddTodo appends a created item.
type AddTodo struct {
	ID    string
	Title string
}

// RemoveTodo drops the item with ID.
type RemoveTodo struct {
	ID string
}

// UpdateTodo replaces the title of the item with ID.
type UpdateTodo struct {
	ID    string
	Title string
}

// ShowLoader sets Loading.
type ShowLoader struct{}

// HideLoader clears Loading.
type HideLoader struct{}

// ShowError sets the user-facing error message.
type ShowError struct {
	Message string
}

// ClearError clears the error message.
type ClearError struct{}

// FetchTodos replaces the whole collection.
type FetchTodos struct {
	Items []model.Todo
}

func (AddTodo) action()    {}
func (RemoveTodo) action() {}
func (UpdateTodo) action() {}
func (ShowLoader) action() {}
func (HideLoader) action() {}
func (ShowError) action()  {}
func (ClearError) action() {}
func (FetchTodos) action() {}

// Reduce handles all state transitions. It never modifies s.Items in place
// and keeps item ids unique.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AddTodo:
		for i, it := range s.Items {
			if it.ID == a.ID {
				items := cloneItems(s.Items)
				items[i].Title = a.Title
				s.Items = items
				return s
			}
		}
		items := make([]model.Todo, 0, len(s.Items)+1)
		items = append(items, s.Items...)
		s.Items = append(items, model.Todo{ID: a.ID, Title: a.Title})

	case RemoveTodo:
		items := make([]model.Todo, 0, len(s.Items))
		for _, it := range s.Items {
			if it.ID != a.ID {
				items = append(items, it)
			}
		}
		s.Items = items

	case UpdateTodo:
		items := cloneItems(s.Items)
		for i := range items {
			if items[i].ID == a.ID {
				items[i].Title = a.Title
			}
		}
		s.Items = items

	case ShowLoader:
		s.Loading = true

	case HideLoader:
		s.Loading = false

	case ShowError:
		s.Error = a.Message

	case ClearError:
		s.Error = ""

	case FetchTodos:
		s.Items = uniqueItems(a.Items)
	}
	return s
}

func cloneItems(items []model.Todo) []model.Todo {
	out := make([]model.Todo, len(items))
	copy(out, items)
	return out
}

// uniqueItems copies items, keeping the first position of each id and the
// last value seen for it.
func uniqueItems(items []model.Todo) []model.Todo {
	out := make([]model.Todo, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, it := range items {
		if i, ok := pos[it.ID]; ok {
			out[i] = it
			continue
		}
		pos[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}
