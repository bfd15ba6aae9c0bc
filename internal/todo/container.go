package todo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Makepad-fr/tada-cloud/internal/model"
)

// ErrorMessage is the only error text users see for remote failures.
const ErrorMessage = "Something went wrong..."

// DeleteHeading titles the delete confirmation dialog.
const DeleteHeading = "Delete object"

var (
	// ErrNotFound is returned for ids that are not in the current state.
	ErrNotFound = errors.New("todo not found")
	// ErrUnknownConfirmation is returned when settling a token that was
	// never issued or was already confirmed or cancelled.
	ErrUnknownConfirmation = errors.New("unknown or settled confirmation")
)

// Store is the remote collection.
type Store interface {
	List(ctx context.Context) ([]model.Todo, error)
	Create(ctx context.Context, title string) (string, error)
	Update(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

// Navigator resets the current view before a confirmed delete, so no view
// keeps showing the item being removed.
type Navigator interface {
	ResetScreen()
}

// NavigatorFunc adapts a func to Navigator.
type NavigatorFunc func()

// ResetScreen calls f.
func (f NavigatorFunc) ResetScreen() { f() }

// Token identifies a pending delete confirmation.
type Token uint64

// Confirmation is what a presentation surface shows before a delete.
type Confirmation struct {
	Token   Token
	ID      string
	Title   string // the item's title
	Heading string
	Message string
}

type listener struct {
	id int
	fn func(State)
}

// Container owns the State. Every change goes through Reduce; listeners are
// notified after each dispatch. Network failures are absorbed into
// State.Error; only caller mistakes are returned as errors.
type Container struct {
	store  Store
	nav    Navigator
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	listeners []listener
	nextID    int
	pending   map[Token]Confirmation
	nextToken Token
}

// NewContainer builds a container with an empty collection. nav may be nil.
func NewContainer(store Store, nav Navigator, logger *zap.Logger) *Container {
	if nav == nil {
		nav = NavigatorFunc(func() {})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		store:   store,
		nav:     nav,
		logger:  logger,
		state:   State{Items: []model.Todo{}},
		pending: make(map[Token]Confirmation),
	}
}

// SetNavigator replaces the navigator. Surfaces that are built after the
// container (the TUI program) register themselves here.
func (c *Container) SetNavigator(nav Navigator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nav == nil {
		nav = NavigatorFunc(func() {})
	}
	c.nav = nav
}

// State returns a snapshot.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Items = cloneItems(s.Items)
	return s
}

// Subscribe registers fn to receive every new state. The returned func
// removes it.
func (c *Container) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Dispatch applies a to the state and notifies listeners.
func (c *Container) Dispatch(a Action) {
	c.mu.Lock()
	c.state = Reduce(c.state, a)
	s := c.state
	ls := make([]listener, len(c.listeners))
	copy(ls, c.listeners)
	c.mu.Unlock()

	for _, l := range ls {
		snap := s
		snap.Items = cloneItems(s.Items)
		l.fn(snap)
	}
}

// AddItem creates a todo remotely and appends it on success. The title is
// sent and stored exactly as given; callers validate user input first.
func (c *Container) AddItem(ctx context.Context, title string) {
	c.Dispatch(ClearError{})
	id, err := c.store.Create(ctx, title)
	if err != nil {
		c.fail("add todo", err)
		return
	}
	c.Dispatch(AddTodo{ID: id, Title: title})
}

// UpdateItem changes the title of an existing todo.
func (c *Container) UpdateItem(ctx context.Context, id, title string) error {
	if _, ok := c.State().Find(id); !ok {
		return fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	c.Dispatch(ClearError{})
	if err := c.store.Update(ctx, id, title); err != nil {
		c.fail("update todo", err, zap.String("id", id))
		return nil
	}
	c.Dispatch(UpdateTodo{ID: id, Title: title})
	return nil
}

// FetchAll replaces the collection with the remote one. Loading is cleared
// whatever the outcome.
func (c *Container) FetchAll(ctx context.Context) {
	c.Dispatch(ShowLoader{})
	defer c.Dispatch(HideLoader{})
	c.Dispatch(ClearError{})

	items, err := c.store.List(ctx)
	if err != nil {
		c.fail("fetch todos", err)
		return
	}
	c.Dispatch(FetchTodos{Items: items})
}

// RequestDelete opens a delete confirmation for id. Nothing changes until
// Confirm is called with the returned token.
func (c *Container) RequestDelete(id string) (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var item model.Todo
	found := false
	for _, it := range c.state.Items {
		if it.ID == id {
			item, found = it, true
			break
		}
	}
	if !found {
		return Confirmation{}, fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}

	c.nextToken++
	conf := Confirmation{
		Token:   c.nextToken,
		ID:      item.ID,
		Title:   item.Title,
		Heading: DeleteHeading,
		Message: fmt.Sprintf("Are you sure, you want to delete %q?", item.Title),
	}
	c.pending[conf.Token] = conf
	return conf, nil
}

// Confirm settles a pending delete: it resets navigation, deletes the item
// remotely and removes it from the state on success.
func (c *Container) Confirm(ctx context.Context, token Token) error {
	conf, err := c.settle(token)
	if err != nil {
		return err
	}
	c.currentNavigator().ResetScreen()
	if err := c.store.Delete(ctx, conf.ID); err != nil {
		c.fail("delete todo", err, zap.String("id", conf.ID))
		return nil
	}
	c.Dispatch(RemoveTodo{ID: conf.ID})
	return nil
}

// Cancel discards a pending delete.
func (c *Container) Cancel(token Token) error {
	_, err := c.settle(token)
	return err
}

func (c *Container) settle(token Token) (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conf, ok := c.pending[token]
	if !ok {
		return Confirmation{}, ErrUnknownConfirmation
	}
	delete(c.pending, token)
	return conf, nil
}

func (c *Container) currentNavigator() Navigator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav
}

func (c *Container) fail(op string, err error, fields ...zap.Field) {
	c.Dispatch(ShowError{Message: ErrorMessage})
	c.logger.Error(op+" failed", append(fields, zap.Error(err))...)
}
