package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidIdentifier indicates a table or column name that cannot be
// safely quoted.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// identifierPattern is deliberately strict: identifiers come from the
// permission map and repository code, never from callers, but quoting is
// still validated.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DBTX is the subset of pgx operations the datastore issues. Satisfied by
// *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Datastore hands out per-request work scopes over one shared pool.
type Datastore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Datastore.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Datastore {
	if logger == nil {
		logger = slog.Default()
	}
	return &Datastore{pool: pool, logger: logger}
}

// Begin creates a work scope for one request. All writes within the scope
// share a single transaction that is opened lazily on the first write;
// reads before the first write go straight to the pool.
func (d *Datastore) Begin() *Work {
	return &Work{pool: d.pool, logger: d.logger}
}

// Work is the per-request datastore handle. It is used by exactly one
// request goroutine and is not safe for concurrent use.
type Work struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	tx     pgx.Tx

	queryCount int64
	queryTime  time.Duration
}

// QueryCount returns the number of statements issued through this scope.
func (w *Work) QueryCount() int64 { return w.queryCount }

// QueryTime returns the cumulative wall-clock seconds spent in statements.
func (w *Work) QueryTime() float64 { return w.queryTime.Seconds() }

// reader returns the open transaction if one exists, otherwise the pool.
func (w *Work) reader() DBTX {
	if w.tx != nil {
		return w.tx
	}
	return w.pool
}

// writer returns the request transaction, opening it on first use.
func (w *Work) writer(ctx context.Context) (DBTX, error) {
	if w.tx == nil {
		tx, err := w.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to start transaction: %w", err)
		}
		w.tx = tx
	}
	return w.tx, nil
}

// Commit commits the request transaction, if one was opened.
func (w *Work) Commit(ctx context.Context) error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the request transaction, if one was opened.
func (w *Work) Rollback(ctx context.Context) error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// track records one executed statement against the scope counters.
func (w *Work) track(start time.Time) {
	w.queryCount++
	w.queryTime += time.Since(start)
}

// Select returns the matching rows as column-keyed maps. An empty columns
// slice selects all columns. Filter values may be nil (IS NULL) or slices
// (IN lists).
func (w *Work) Select(ctx context.Context, table string, filter map[string]any, columns []string) ([]map[string]any, error) {
	sql, args, err := buildSelect(table, filter, columns)
	if err != nil {
		return nil, err
	}

	defer w.track(time.Now())
	rows, err := w.reader().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("select from %s: %w", table, err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	return out, nil
}

// Insert adds a row and returns the generated primary key. The primary key
// column is assumed to be <table>_id.
func (w *Work) Insert(ctx context.Context, table string, attrs map[string]any) (int64, error) {
	sql, args, err := buildInsert(table, attrs)
	if err != nil {
		return 0, err
	}

	db, err := w.writer(ctx)
	if err != nil {
		return 0, err
	}

	defer w.track(time.Now())
	var id int64
	if err := db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}

// UpdateByID sets attrs on the row with the given primary key and returns
// the number of affected rows.
func (w *Work) UpdateByID(ctx context.Context, table string, id int64, attrs map[string]any) (int64, error) {
	sql, args, err := buildUpdate(table, id, attrs)
	if err != nil {
		return 0, err
	}

	db, err := w.writer(ctx)
	if err != nil {
		return 0, err
	}

	defer w.track(time.Now())
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// HardDelete removes the row outright. Not reachable through the default
// permission map; exists for data-removal obligations.
func (w *Work) HardDelete(ctx context.Context, table string, id int64) (int64, error) {
	quoted, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}
	pk, err := quoteIdent(table + "_id")
	if err != nil {
		return 0, err
	}

	db, err := w.writer(ctx)
	if err != nil {
		return 0, err
	}

	defer w.track(time.Now())
	tag, err := db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quoted, pk), id)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// quoteIdent validates and double-quotes an SQL identifier.
func quoteIdent(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// sortedKeys returns map keys in deterministic order so generated SQL is
// stable for logging and tests.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhere renders the filter as a WHERE clause. Placeholders continue
// from *argn.
func buildWhere(filter map[string]any, argn *int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	var (
		clauses []string
		args    []any
	)
	for _, key := range sortedKeys(filter) {
		col, err := quoteIdent(key)
		if err != nil {
			return "", nil, err
		}

		switch v := filter[key].(type) {
		case nil:
			clauses = append(clauses, col+" IS NULL")
		case []any:
			if len(v) == 0 {
				// An empty IN list matches nothing.
				clauses = append(clauses, "FALSE")
				continue
			}
			placeholders := make([]string, len(v))
			for i, elem := range v {
				placeholders[i] = fmt.Sprintf("$%d", *argn)
				*argn++
				args = append(args, elem)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
		default:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, *argn))
			*argn++
			args = append(args, v)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func buildSelect(table string, filter map[string]any, columns []string) (string, []any, error) {
	quoted, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(columns) > 0 {
		quotedCols := make([]string, len(columns))
		for i, c := range columns {
			qc, err := quoteIdent(c)
			if err != nil {
				return "", nil, err
			}
			quotedCols[i] = qc
		}
		cols = strings.Join(quotedCols, ", ")
	}

	argn := 1
	where, args, err := buildWhere(filter, &argn)
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("SELECT %s FROM %s%s", cols, quoted, where), args, nil
}

func buildInsert(table string, attrs map[string]any) (string, []any, error) {
	if len(attrs) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no attributes", table)
	}

	quoted, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	pk, err := quoteIdent(table + "_id")
	if err != nil {
		return "", nil, err
	}

	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for i, key := range sortedKeys(attrs) {
		col, err := quoteIdent(key)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, attrs[key])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quoted, strings.Join(cols, ", "), strings.Join(placeholders, ", "), pk)
	return sql, args, nil
}

func buildUpdate(table string, id any, attrs map[string]any) (string, []any, error) {
	if len(attrs) == 0 {
		return "", nil, fmt.Errorf("update %s: no attributes", table)
	}

	quoted, err := quoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	pk, err := quoteIdent(table + "_id")
	if err != nil {
		return "", nil, err
	}

	var (
		sets []string
		args []any
	)
	argn := 1
	for _, key := range sortedKeys(attrs) {
		col, err := quoteIdent(key)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argn))
		argn++
		args = append(args, attrs[key])
	}
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quoted, strings.Join(sets, ", "), pk, argn)
	return sql, args, nil
}
