package crud

import (
	"context"

	"github.com/porterapi/porter/internal/dispatch"
)

// StandardMethods is the parameter declaration for the default method set,
// in the shape the permission map consumes. Operators expose a subset of
// these per resource; nothing forces the full set.
func StandardMethods() map[string][]string {
	return map[string][]string{
		"read":     {"filters"},
		"read_id":  {"filters"},
		"get":      {"id"},
		"create":   {"attributes"},
		"update":   {"id", "attributes"},
		"delete":   {"id"},
		"undelete": {"id"},
	}
}

// RegisterResource registers the full default method set for a table.
// Which of them are reachable is decided by the permission map alone.
func RegisterResource(reg *dispatch.Registry, table string) {
	repo := NewRepository(table)

	reg.Register(table, "read", func(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
		filters, err := objectArg(args, 0)
		if err != nil {
			return nil, err
		}
		return repo.Read(ctx, rc.Store, filters)
	})

	reg.Register(table, "read_id", func(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
		filters, err := objectArg(args, 0)
		if err != nil {
			return nil, err
		}
		return repo.ReadID(ctx, rc.Store, filters)
	})

	reg.Register(table, "get", func(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
		id, err := intArg(args, 0)
		if err != nil {
			return nil, err
		}
		return repo.Get(ctx, rc.Store, id)
	})

	reg.Register(table, "create", func(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
		attrs, err := objectArg(args, 0)
		if err != nil {
			return nil, err
		}
		return repo.Create(ctx, rc.Store, attrs)
	})

	reg.Register(table, "update", func(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
		id, err := intArg(args, 0)
		if err != nil {
			return nil, err
		}
		attrs, err := objectArg(args, 1)
		if err != nil {
			return nil, err
		}
		return repo.Update(ctx, rc.Store, id, attrs)
	})

	reg.Register(table, "delete", func(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
		id, err := intArg(args, 0)
		if err != nil {
			return nil, err
		}
		return repo.Delete(ctx, rc.Store, id)
	})

	reg.Register(table, "undelete", func(ctx context.Context, rc *dispatch.RequestContext, args []any) (any, error) {
		id, err := intArg(args, 0)
		if err != nil {
			return nil, err
		}
		return repo.Undelete(ctx, rc.Store, id)
	})
}

// intArg reads a positional integer argument. JSON numbers arrive as
// float64; database keys referenced through cross-call substitution arrive
// as int64.
func intArg(args []any, idx int) (int64, error) {
	if idx >= len(args) {
		return 0, dispatch.NewErrorf(dispatch.CodeInternal, "Argument %d is required.", idx)
	}
	switch v := args[idx].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, dispatch.NewErrorf(dispatch.CodeInternal, "Argument %d must be an integer.", idx)
	}
}

// objectArg reads a positional object argument. A missing trailing
// argument defaults to an empty object.
func objectArg(args []any, idx int) (map[string]any, error) {
	if idx >= len(args) || args[idx] == nil {
		return map[string]any{}, nil
	}
	obj, ok := args[idx].(map[string]any)
	if !ok {
		return nil, dispatch.NewErrorf(dispatch.CodeInternal, "Argument %d must be an object.", idx)
	}
	return obj, nil
}
