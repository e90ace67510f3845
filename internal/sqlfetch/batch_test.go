package sqlfetch

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowhydrate/hydrate"
	"rowhydrate/internal/dbexec"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectQuery(mock sqlmock.Sqlmock, sql string, args []any, rows *sqlmock.Rows) {
	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a
	}
	mock.ExpectQuery(regexp.QuoteMeta(sql)).WithArgs(values...).WillReturnRows(rows)
}

func TestBatchAttachMany(t *testing.T) {
	db, mock := newMockDB(t)
	expectQuery(mock,
		"SELECT `id`, `body`, `post_id` FROM `comments` WHERE `post_id` IN (?,?,?) ORDER BY id",
		[]any{int64(1), int64(2), int64(3)},
		sqlmock.NewRows([]string{"id", "body", "post_id"}).
			AddRow(int64(10), "a", int64(1)).
			AddRow(int64(11), "b", int64(2)).
			AddRow(int64(12), "c", int64(1)),
	)

	fetch, match, err := Batch{
		Exec:         dbexec.NewStandardExecutor(db),
		Table:        "comments",
		Columns:      []string{"id", "body"},
		MatchColumns: []string{"post_id"},
		OrderBy:      []string{"id"},
		Child:        hydrate.New("id").Fields("id", "body"),
	}.Attach([]string{"id"})
	require.NoError(t, err)

	spec := hydrate.New("id").Fields("id").AttachMany("comments", fetch, match)
	rows := []hydrate.Row{{"id": int64(1)}, {"id": int64(2)}, {"id": int64(3)}}

	got, err := hydrate.Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	assert.Equal(t, []any{
		hydrate.Entity{"id": int64(1), "comments": []any{
			hydrate.Entity{"id": int64(10), "body": "a", "post_id": int64(1)},
			hydrate.Entity{"id": int64(12), "body": "c", "post_id": int64(1)},
		}},
		hydrate.Entity{"id": int64(2), "comments": []any{
			hydrate.Entity{"id": int64(11), "body": "b", "post_id": int64(2)},
		}},
		hydrate.Entity{"id": int64(3), "comments": []any{}},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchChunksAndCompositeKeys(t *testing.T) {
	db, mock := newMockDB(t)
	expectQuery(mock,
		"SELECT * FROM `members` WHERE (`tenant`, `team_id`) IN ((?,?), (?,?))",
		[]any{"a", int64(1), "a", int64(2)},
		sqlmock.NewRows([]string{"tenant", "team_id", "name"}).AddRow("a", int64(1), "ann"),
	)
	expectQuery(mock,
		"SELECT * FROM `members` WHERE (`tenant`, `team_id`) IN ((?,?))",
		[]any{"b", int64(1)},
		sqlmock.NewRows([]string{"tenant", "team_id", "name"}).AddRow("b", int64(1), "bob"),
	)

	b := Batch{
		Exec:         dbexec.NewStandardExecutor(db),
		Table:        "members",
		MatchColumns: []string{"tenant", "team_id"},
		ParentFields: []string{"tenant", "id"},
		MaxInClause:  2,
		Child:        hydrate.New("tenant", "team_id", "name").Fields("name"),
	}
	fetch, err := b.FetchFunc()
	require.NoError(t, err)

	spec := hydrate.New("tenant", "id").Fields("id").AttachOne("member", fetch, b.Match())
	rows := []hydrate.Row{
		{"tenant": "a", "id": int64(1)},
		{"tenant": "a", "id": int64(2)},
		{"tenant": "b", "id": int64(1)},
	}

	got, err := hydrate.Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "ann", got[0].(hydrate.Entity)["member"].(hydrate.Entity)["name"])
	assert.Nil(t, got[1].(hydrate.Entity)["member"])
	assert.Equal(t, "bob", got[2].(hydrate.Entity)["member"].(hydrate.Entity)["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchNoParentsNoQuery(t *testing.T) {
	db, mock := newMockDB(t)

	fetch, err := Batch{
		Exec:         dbexec.NewStandardExecutor(db),
		Table:        "comments",
		MatchColumns: []string{"post_id"},
		ParentFields: []string{"id"},
		Child:        hydrate.New("id"),
	}.FetchFunc()
	require.NoError(t, err)

	got, err := fetch(context.Background(), []hydrate.Row{{"id": nil}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchWhereAndRecursiveAttach(t *testing.T) {
	db, mock := newMockDB(t)
	exec := dbexec.NewStandardExecutor(db)

	expectQuery(mock,
		"SELECT `id`, `post_id` FROM `comments` WHERE `post_id` IN (?) AND deleted_at IS NULL",
		[]any{int64(1)},
		sqlmock.NewRows([]string{"id", "post_id"}).AddRow(int64(10), int64(1)).AddRow(int64(11), int64(1)),
	)
	expectQuery(mock,
		"SELECT * FROM `reactions` WHERE `comment_id` IN (?,?)",
		[]any{int64(10), int64(11)},
		sqlmock.NewRows([]string{"comment_id", "emoji"}).AddRow(int64(11), "+1"),
	)

	reactions, rmatch, err := Batch{
		Exec:         exec,
		Table:        "reactions",
		MatchColumns: []string{"comment_id"},
		Child:        hydrate.New().Fields("emoji"),
	}.Attach([]string{"id"})
	require.NoError(t, err)

	comments, cmatch, err := Batch{
		Exec:         exec,
		Table:        "comments",
		Columns:      []string{"id", "post_id"},
		MatchColumns: []string{"post_id"},
		Where:        "deleted_at IS NULL",
		Child:        hydrate.New("id").Fields("id").AttachMany("reactions", reactions, rmatch),
	}.Attach([]string{"id"})
	require.NoError(t, err)

	spec := hydrate.New("id").Fields("id").AttachMany("comments", comments, cmatch)
	got, err := hydrate.HydrateOne(context.Background(), hydrate.Row{"id": int64(1)}, spec)
	require.NoError(t, err)

	list := got.(hydrate.Entity)["comments"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, []any{}, list[0].(hydrate.Entity)["reactions"])
	assert.Equal(t, []any{hydrate.Entity{"emoji": "+1", "comment_id": int64(11)}}, list[1].(hydrate.Entity)["reactions"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchValidation(t *testing.T) {
	exec := dbexec.ExecutorFunc(func(ctx context.Context, query string, args ...any) (dbexec.Rows, error) {
		return nil, nil
	})
	child := hydrate.New("id")

	tests := []struct {
		name  string
		batch Batch
	}{
		{"no executor", Batch{Table: "t", MatchColumns: []string{"a"}, ParentFields: []string{"a"}, Child: child}},
		{"no table", Batch{Exec: exec, MatchColumns: []string{"a"}, ParentFields: []string{"a"}, Child: child}},
		{"no match columns", Batch{Exec: exec, Table: "t", Child: child}},
		{"width mismatch", Batch{Exec: exec, Table: "t", MatchColumns: []string{"a"}, ParentFields: []string{"a", "b"}, Child: child}},
		{"no child", Batch{Exec: exec, Table: "t", MatchColumns: []string{"a"}, ParentFields: []string{"a"}}},
		{"no parent fields", Batch{Exec: exec, Table: "t", MatchColumns: []string{"a"}, Child: child}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.batch.FetchFunc()
			assert.Error(t, err)
		})
	}
}
