// Package crud provides the generic repository the default resource methods
// are built from, plus the built-in account resources.
package crud

import (
	"context"

	"github.com/porterapi/porter/internal/dispatch"
)

// Repository implements the standard method set for one table. Rows are
// soft-deleted: read paths filter on the deleted flag instead of removing
// rows, so delete is reversible and history stays queryable.
type Repository struct {
	Table string
}

// NewRepository binds a repository to a table. The primary key column is
// derived as <table>_id.
func NewRepository(table string) *Repository {
	return &Repository{Table: table}
}

func (r *Repository) pk() string {
	return r.Table + "_id"
}

// Read returns live rows matching the filters. Callers that explicitly
// filter on deleted see exactly what they asked for; everyone else sees
// only live rows.
func (r *Repository) Read(ctx context.Context, store dispatch.Datastore, filters map[string]any) ([]map[string]any, error) {
	return store.Select(ctx, r.Table, withLiveFilter(filters), nil)
}

// ReadID returns just the primary keys of matching live rows.
func (r *Repository) ReadID(ctx context.Context, store dispatch.Datastore, filters map[string]any) ([]any, error) {
	rows, err := store.Select(ctx, r.Table, withLiveFilter(filters), []string{r.pk()})
	if err != nil {
		return nil, err
	}

	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row[r.pk()])
	}
	return ids, nil
}

// Get fetches one row by primary key. Unlike Read, Get sees soft-deleted
// rows too; a key that matches nothing at all is an error the client can
// branch on.
func (r *Repository) Get(ctx context.Context, store dispatch.Datastore, id int64) (map[string]any, error) {
	rows, err := store.Select(ctx, r.Table, map[string]any{r.pk(): id}, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, dispatch.NewErrorf(dispatch.CodeItemNotFound,
			"Requested item (%d) could not be found.", id)
	}
	return rows[0], nil
}

// Create inserts a row and returns its primary key. A primary key smuggled
// into the attributes is dropped; keys are always generated.
func (r *Repository) Create(ctx context.Context, store dispatch.Datastore, attributes map[string]any) (int64, error) {
	attrs := make(map[string]any, len(attributes))
	for k, v := range attributes {
		if k == r.pk() {
			continue
		}
		attrs[k] = v
	}
	return store.Insert(ctx, r.Table, attrs)
}

// Update overwrites the given attributes on one row and reports how many
// rows changed.
func (r *Repository) Update(ctx context.Context, store dispatch.Datastore, id int64, attributes map[string]any) (int64, error) {
	attrs := make(map[string]any, len(attributes))
	for k, v := range attributes {
		if k == r.pk() {
			continue
		}
		attrs[k] = v
	}
	return store.UpdateByID(ctx, r.Table, id, attrs)
}

// Delete soft-deletes one row.
func (r *Repository) Delete(ctx context.Context, store dispatch.Datastore, id int64) (int64, error) {
	return store.UpdateByID(ctx, r.Table, id, map[string]any{"deleted": 1})
}

// Undelete restores a soft-deleted row.
func (r *Repository) Undelete(ctx context.Context, store dispatch.Datastore, id int64) (int64, error) {
	return store.UpdateByID(ctx, r.Table, id, map[string]any{"deleted": 0})
}

// withLiveFilter copies the filters and pins deleted = 0 unless the caller
// filtered on deleted themselves.
func withLiveFilter(filters map[string]any) map[string]any {
	out := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		out[k] = v
	}
	if _, ok := out["deleted"]; !ok {
		out["deleted"] = 0
	}
	return out
}
