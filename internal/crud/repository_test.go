package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterapi/porter/internal/dispatch"
)

// fakeStore records calls and plays back canned rows.
type fakeStore struct {
	rows []map[string]any

	selectTable   string
	selectFilters map[string]any
	selectColumns []string

	insertTable  string
	insertValues map[string]any
	insertID     int64

	updateTable  string
	updateID     int64
	updateValues map[string]any
}

func (s *fakeStore) Select(_ context.Context, table string, filters map[string]any, columns []string) ([]map[string]any, error) {
	s.selectTable, s.selectFilters, s.selectColumns = table, filters, columns
	return s.rows, nil
}

func (s *fakeStore) Insert(_ context.Context, table string, values map[string]any) (int64, error) {
	s.insertTable, s.insertValues = table, values
	return s.insertID, nil
}

func (s *fakeStore) UpdateByID(_ context.Context, table string, id int64, values map[string]any) (int64, error) {
	s.updateTable, s.updateID, s.updateValues = table, id, values
	return 1, nil
}

func (s *fakeStore) Commit(context.Context) error   { return nil }
func (s *fakeStore) Rollback(context.Context) error { return nil }
func (s *fakeStore) QueryCount() int64              { return 0 }
func (s *fakeStore) QueryTime() float64             { return 0 }

func TestRepositoryRead(t *testing.T) {
	repo := NewRepository("widget")
	ctx := context.Background()

	t.Run("pins deleted to live rows", func(t *testing.T) {
		store := &fakeStore{}
		_, err := repo.Read(ctx, store, map[string]any{"color": "red"})
		require.NoError(t, err)
		assert.Equal(t, "widget", store.selectTable)
		assert.Equal(t, map[string]any{"color": "red", "deleted": 0}, store.selectFilters)
	})

	t.Run("explicit deleted filter wins", func(t *testing.T) {
		store := &fakeStore{}
		_, err := repo.Read(ctx, store, map[string]any{"deleted": 1})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"deleted": 1}, store.selectFilters)
	})

	t.Run("nil filters still pin deleted", func(t *testing.T) {
		store := &fakeStore{}
		_, err := repo.Read(ctx, store, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"deleted": 0}, store.selectFilters)
	})
}

func TestRepositoryReadID(t *testing.T) {
	repo := NewRepository("widget")
	store := &fakeStore{rows: []map[string]any{
		{"widget_id": int64(1)},
		{"widget_id": int64(2)},
	}}

	ids, err := repo.ReadID(context.Background(), store, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, ids)
	assert.Equal(t, []string{"widget_id"}, store.selectColumns)
}

func TestRepositoryGet(t *testing.T) {
	repo := NewRepository("widget")
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		store := &fakeStore{rows: []map[string]any{{"widget_id": int64(7), "name": "sprocket"}}}
		row, err := repo.Get(ctx, store, 7)
		require.NoError(t, err)
		assert.Equal(t, "sprocket", row["name"])

		// Get does not restrict on the deleted flag.
		assert.Equal(t, map[string]any{"widget_id": int64(7)}, store.selectFilters)
	})

	t.Run("not found", func(t *testing.T) {
		store := &fakeStore{}
		_, err := repo.Get(ctx, store, 99)
		require.Error(t, err)

		derr := dispatch.AsError(err)
		assert.Equal(t, dispatch.CodeItemNotFound, derr.Code)
	})
}

func TestRepositoryCreate(t *testing.T) {
	repo := NewRepository("widget")
	store := &fakeStore{insertID: 11}

	id, err := repo.Create(context.Background(), store, map[string]any{
		"widget_id": 999,
		"name":      "cog",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	// The smuggled primary key is dropped.
	assert.Equal(t, map[string]any{"name": "cog"}, store.insertValues)
}

func TestRepositorySoftDelete(t *testing.T) {
	repo := NewRepository("widget")
	ctx := context.Background()

	store := &fakeStore{}
	_, err := repo.Delete(ctx, store, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), store.updateID)
	assert.Equal(t, map[string]any{"deleted": 1}, store.updateValues)

	_, err = repo.Undelete(ctx, store, 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"deleted": 0}, store.updateValues)
}

func TestRepositoryUpdate(t *testing.T) {
	repo := NewRepository("widget")
	store := &fakeStore{}

	n, err := repo.Update(context.Background(), store, 7, map[string]any{
		"widget_id": 8,
		"name":      "gear",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(7), store.updateID)
	assert.Equal(t, map[string]any{"name": "gear"}, store.updateValues)
}
