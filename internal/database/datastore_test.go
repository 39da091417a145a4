package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"user", `"user"`, false},
		{"api_log", `"api_log"`, false},
		{"_private", `"_private"`, false},
		{"Widget2", `"Widget2"`, false},
		{"", "", true},
		{"drop table", "", true},
		{`evil"`, "", true},
		{"semi;colon", "", true},
		{"1leading", "", true},
	}

	for _, tt := range tests {
		got, err := quoteIdent(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidIdentifier, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestBuildSelect_AllColumnsNoFilter(t *testing.T) {
	sql, args, err := buildSelect("widget", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "widget"`, sql)
	assert.Empty(t, args)
}

func TestBuildSelect_FilterVariants(t *testing.T) {
	sql, args, err := buildSelect("widget",
		map[string]any{
			"deleted":  int16(0),
			"owner_id": nil,
			"state":    []any{"new", "open"},
		},
		[]string{"widget_id", "name"},
	)
	require.NoError(t, err)

	// Filter keys render in sorted order with sequential placeholders.
	assert.Equal(t,
		`SELECT "widget_id", "name" FROM "widget"`+
			` WHERE "deleted" = $1 AND "owner_id" IS NULL AND "state" IN ($2, $3)`,
		sql)
	assert.Equal(t, []any{int16(0), "new", "open"}, args)
}

func TestBuildSelect_EmptyInListMatchesNothing(t *testing.T) {
	sql, args, err := buildSelect("widget", map[string]any{"state": []any{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "widget" WHERE FALSE`, sql)
	assert.Empty(t, args)
}

func TestBuildSelect_RejectsBadIdentifiers(t *testing.T) {
	_, _, err := buildSelect("widget; drop table x", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, _, err = buildSelect("widget", map[string]any{"bad col": 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, _, err = buildSelect("widget", nil, []string{`x"`})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestBuildInsert(t *testing.T) {
	sql, args, err := buildInsert("widget", map[string]any{
		"name":  "gear",
		"size":  5,
		"owner": nil,
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "widget" ("name", "owner", "size") VALUES ($1, $2, $3) RETURNING "widget_id"`,
		sql)
	assert.Equal(t, []any{"gear", nil, 5}, args)
}

func TestBuildInsert_NoAttributes(t *testing.T) {
	_, _, err := buildInsert("widget", nil)
	assert.Error(t, err)
}

func TestBuildUpdate(t *testing.T) {
	sql, args, err := buildUpdate("widget", int64(7), map[string]any{
		"name":    "sprocket",
		"deleted": 1,
	})
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "widget" SET "deleted" = $1, "name" = $2 WHERE "widget_id" = $3`,
		sql)
	assert.Equal(t, []any{1, "sprocket", int64(7)}, args)
}

func TestBuildUpdate_NoAttributes(t *testing.T) {
	_, _, err := buildUpdate("widget", 1, map[string]any{})
	assert.Error(t, err)
}
