package session_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/internal/gate/session"
	"github.com/wdb/iiifgate/internal/gate/store"
)

func newMockTable(t *testing.T, driver string) (*session.SQLTable, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	table, err := session.NewSQLTable(db, driver)
	require.NoError(t, err)
	return table, mock
}

func TestSQLTable_GetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("mysql placeholder", func(t *testing.T) {
		table, mock := newMockTable(t, session.DriverMySQL)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT uid, session FROM sessions WHERE sid = ? LIMIT 1`)).
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows([]string{"uid", "session"}).AddRow(int64(42), []byte(`uid|i:42;`)))

		row, err := table.GetSession(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, "abc", row.SID)
		require.EqualValues(t, 42, row.UID)
		require.Equal(t, []byte(`uid|i:42;`), row.Payload)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres placeholder and null uid", func(t *testing.T) {
		table, mock := newMockTable(t, session.DriverPostgres)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT uid, session FROM sessions WHERE sid = $1 LIMIT 1`)).
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows([]string{"uid", "session"}).AddRow(nil, []byte(`"uid";i:7;`)))

		row, err := table.GetSession(ctx, "abc")
		require.NoError(t, err)
		require.Zero(t, row.UID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		table, mock := newMockTable(t, session.DriverMySQL)

		mock.ExpectQuery(`SELECT uid, session FROM sessions`).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows([]string{"uid", "session"}))

		_, err := table.GetSession(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("query error wrapped", func(t *testing.T) {
		table, mock := newMockTable(t, session.DriverMySQL)

		boom := errors.New("server has gone away")
		mock.ExpectQuery(`SELECT uid, session FROM sessions`).WillReturnError(boom)

		_, err := table.GetSession(ctx, "abc")
		require.ErrorIs(t, err, boom)
	})
}

func TestNewSQLTable_UnsupportedDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = session.NewSQLTable(db, "sqlserver")
	require.Error(t, err)
}

func TestResolver_WithSQLTable(t *testing.T) {
	table, mock := newMockTable(t, session.DriverMySQL)

	mock.ExpectQuery(`SELECT uid, session FROM sessions`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "session"}).AddRow(int64(0), []byte(`"uid";s:2:"77";`)))

	id, ok := session.NewResolver(nil, table).Resolve(context.Background(), "abc")
	require.True(t, ok)
	require.EqualValues(t, 77, id)
	require.NoError(t, mock.ExpectationsWereMet())
}
