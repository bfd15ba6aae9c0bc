package todo

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Makepad-fr/tada-cloud/internal/emulator"
	"github.com/Makepad-fr/tada-cloud/internal/model"
	"github.com/Makepad-fr/tada-cloud/internal/store/rtdb"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) List(ctx context.Context) ([]model.Todo, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]model.Todo)
	return items, args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, title string) (string, error) {
	args := m.Called(ctx, title)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id, title string) error {
	args := m.Called(ctx, id, title)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var errNetwork = &rtdb.NetworkError{Op: rtdb.OpList, Err: errors.New("connection refused")}

func seeded(t *testing.T, store *MockStore, items ...model.Todo) *Container {
	t.Helper()
	c := NewContainer(store, nil, zap.NewNop())
	c.Dispatch(FetchTodos{Items: items})
	return c
}

func TestAddItem_Success(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("Create", ctx, "Buy milk").Return("k1", nil)
	c := seeded(t, store, model.Todo{ID: "k0", Title: "existing"})
	c.Dispatch(ShowError{Message: ErrorMessage})

	c.AddItem(ctx, "Buy milk")

	s := c.State()
	assert.Equal(t, []model.Todo{{ID: "k0", Title: "existing"}, {ID: "k1", Title: "Buy milk"}}, s.Items)
	assert.Empty(t, s.Error)
	store.AssertExpectations(t)
}

func TestAddItem_NetworkFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("Create", ctx, "Buy milk").Return("", errNetwork)
	c := seeded(t, store, model.Todo{ID: "k0", Title: "existing"})

	c.AddItem(ctx, "Buy milk")

	s := c.State()
	assert.Equal(t, ErrorMessage, s.Error)
	assert.Equal(t, []model.Todo{{ID: "k0", Title: "existing"}}, s.Items)
}

func TestAddItem_StoresTitleAsGiven(t *testing.T) {
	ctx := context.Background()
	for i, title := range []string{" padded ", "", "tab\tand\nnewline"} {
		store := new(MockStore)
		id := fmt.Sprintf("k%d", i)
		store.On("Create", ctx, title).Return(id, nil).Once()
		c := seeded(t, store)

		c.AddItem(ctx, title)

		assert.Equal(t, []model.Todo{{ID: id, Title: title}}, c.State().Items, "title %q", title)
		store.AssertExpectations(t)
	}
}

func TestUpdateItem_StoresTitleAsGiven(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("Update", ctx, "a", "  spaced  ").Return(nil).Once()
	c := seeded(t, store, model.Todo{ID: "a", Title: "one"})

	require.NoError(t, c.UpdateItem(ctx, "a", "  spaced  "))
	assert.Equal(t, []model.Todo{{ID: "a", Title: "  spaced  "}}, c.State().Items)
	store.AssertExpectations(t)
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	items := []model.Todo{{ID: "a", Title: "one"}, {ID: "b", Title: "two"}}

	t.Run("success changes only that title", func(t *testing.T) {
		store := new(MockStore)
		store.On("Update", ctx, "b", "dos").Return(nil)
		c := seeded(t, store, items...)

		require.NoError(t, c.UpdateItem(ctx, "b", "dos"))
		assert.Equal(t, []model.Todo{{ID: "a", Title: "one"}, {ID: "b", Title: "dos"}}, c.State().Items)
	})

	t.Run("failure keeps items", func(t *testing.T) {
		store := new(MockStore)
		store.On("Update", ctx, "b", "dos").Return(errNetwork)
		c := seeded(t, store, items...)

		require.NoError(t, c.UpdateItem(ctx, "b", "dos"))
		s := c.State()
		assert.Equal(t, items, s.Items)
		assert.Equal(t, ErrorMessage, s.Error)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := new(MockStore)
		c := seeded(t, store, items...)

		err := c.UpdateItem(ctx, "zz", "dos")
		assert.ErrorIs(t, err, ErrNotFound)
		store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestFetchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("success replaces items and clears loading", func(t *testing.T) {
		store := new(MockStore)
		remote := []model.Todo{{ID: "r1", Title: "remote"}}
		store.On("List", ctx).Return(remote, nil)
		c := seeded(t, store, model.Todo{ID: "old", Title: "stale"})

		var sawLoading bool
		c.Subscribe(func(s State) {
			if s.Loading {
				sawLoading = true
			}
		})
		c.FetchAll(ctx)

		s := c.State()
		assert.True(t, sawLoading)
		assert.False(t, s.Loading)
		assert.Empty(t, s.Error)
		assert.Equal(t, remote, s.Items)
	})

	t.Run("failure sets error, keeps items, clears loading", func(t *testing.T) {
		store := new(MockStore)
		store.On("List", ctx).Return(nil, errNetwork)
		c := seeded(t, store, model.Todo{ID: "old", Title: "stale"})

		c.FetchAll(ctx)

		s := c.State()
		assert.False(t, s.Loading)
		assert.Equal(t, ErrorMessage, s.Error)
		assert.Equal(t, []model.Todo{{ID: "old", Title: "stale"}}, s.Items)
	})
}

func TestDelete_ConfirmResetsScreenThenDeletes(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	var order []string
	store.On("Delete", ctx, "a").Run(func(mock.Arguments) { order = append(order, "delete") }).Return(nil)
	c := seeded(t, store, model.Todo{ID: "a", Title: "one"}, model.Todo{ID: "b", Title: "two"})
	c.SetNavigator(NavigatorFunc(func() { order = append(order, "reset") }))

	conf, err := c.RequestDelete("a")
	require.NoError(t, err)
	assert.Equal(t, DeleteHeading, conf.Heading)
	assert.Equal(t, `Are you sure, you want to delete "one"?`, conf.Message)
	assert.Len(t, c.State().Items, 2, "request alone changes nothing")
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	require.NoError(t, c.Confirm(ctx, conf.Token))

	assert.Equal(t, []string{"reset", "delete"}, order)
	assert.Equal(t, []model.Todo{{ID: "b", Title: "two"}}, c.State().Items)

	assert.ErrorIs(t, c.Confirm(ctx, conf.Token), ErrUnknownConfirmation)
}

func TestDelete_CancelLeavesState(t *testing.T) {
	store := new(MockStore)
	reset := false
	items := []model.Todo{{ID: "a", Title: "one"}}
	c := NewContainer(store, NavigatorFunc(func() { reset = true }), zap.NewNop())
	c.Dispatch(FetchTodos{Items: items})
	before := c.State()

	conf, err := c.RequestDelete("a")
	require.NoError(t, err)
	require.NoError(t, c.Cancel(conf.Token))

	assert.Equal(t, before, c.State())
	assert.False(t, reset)
	assert.ErrorIs(t, c.Confirm(context.Background(), conf.Token), ErrUnknownConfirmation)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_UnknownID(t *testing.T) {
	c := seeded(t, new(MockStore))
	_, err := c.RequestDelete("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Cancel(Token(42)), ErrUnknownConfirmation)
}

func TestDelete_NetworkFailureKeepsItem(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("Delete", ctx, "a").Return(errNetwork)
	c := seeded(t, store, model.Todo{ID: "a", Title: "one"})

	conf, err := c.RequestDelete("a")
	require.NoError(t, err)
	require.NoError(t, c.Confirm(ctx, conf.Token))

	s := c.State()
	assert.Equal(t, ErrorMessage, s.Error)
	assert.Equal(t, []model.Todo{{ID: "a", Title: "one"}}, s.Items)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	c := NewContainer(new(MockStore), nil, nil)
	var calls int
	unsubscribe := c.Subscribe(func(State) { calls++ })

	c.Dispatch(ShowLoader{})
	unsubscribe()
	c.Dispatch(HideLoader{})

	assert.Equal(t, 1, calls)
}

func TestSnapshotIsIsolated(t *testing.T) {
	c := seeded(t, new(MockStore), model.Todo{ID: "a", Title: "one"})
	s := c.State()
	s.Items[0].Title = "mutated"
	assert.Equal(t, "one", c.State().Items[0].Title)
}

func TestContainerAgainstEmulator(t *testing.T) {
	srv, err := emulator.New()
	require.NoError(t, err)
	srv.Seed("first", "second")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client, err := rtdb.New(ts.URL, rtdb.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	c := NewContainer(client, nil, zap.NewNop())
	ctx := context.Background()

	c.FetchAll(ctx)
	s := c.State()
	require.Len(t, s.Items, 2)
	assert.Equal(t, "first", s.Items[0].Title)
	assert.Equal(t, "second", s.Items[1].Title)

	c.AddItem(ctx, "third")
	require.NoError(t, c.UpdateItem(ctx, s.Items[0].ID, "first, edited"))
	conf, err := c.RequestDelete(s.Items[1].ID)
	require.NoError(t, err)
	require.NoError(t, c.Confirm(ctx, conf.Token))

	local := c.State().Items
	assert.Empty(t, c.State().Error)
	assert.Equal(t, srv.Items(), local)
	assert.Equal(t, []string{"first, edited", "third"}, []string{local[0].Title, local[1].Title})
}
