package relational

import (
	"context"
	"database/sql"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

const testClockMs = 1700000000000

func newMockStore(t *testing.T, d Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := &Store{db: db, dialect: d, log: slog.Default(), clock: func() int64 { return testClockMs }}
	return s, mock
}

func mockScope() scope.Scope {
	return scope.Scope{TenantID: "demo", UserID: "alice", AgentID: "helper", SessionID: "s1", RunID: "r1"}
}

func TestUpsertFactMySQLRunsInTransaction(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)
	sc := mockScope()
	v, err := types.NewValue("v")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_ms FROM facts WHERE scope_hash = ? AND fact_id = ?`)).
		WithArgs(sc.Hash(), "f1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO facts.*ON DUPLICATE KEY UPDATE fact_key=VALUES\(fact_key\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	f, err := s.UpsertFact(context.Background(), sc, types.Fact{FactID: "f1", FactKey: "k", Value: v, Confidence: 0.9})
	require.NoError(t, err)
	require.Equal(t, int64(testClockMs), f.CreatedMs)
	require.Equal(t, int64(testClockMs), f.UpdatedMs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFactPostgresPlaceholdersAndConflictClause(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)
	sc := mockScope()
	v, err := types.NewValue("v")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_ms FROM facts WHERE scope_hash = $1 AND fact_id = $2`)).
		WithArgs(sc.Hash(), "f1").
		WillReturnRows(sqlmock.NewRows([]string{"created_ms"}).AddRow(int64(111)))
	mock.ExpectExec(`INSERT INTO facts.*VALUES \(\$1,.*\$15\) ON CONFLICT \(scope_hash, fact_id\) DO UPDATE SET fact_key=excluded\.fact_key`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f, err := s.UpsertFact(context.Background(), sc, types.Fact{FactID: "f1", FactKey: "k", Value: v, Confidence: 0.9})
	require.NoError(t, err)
	require.Equal(t, int64(111), f.CreatedMs)
	require.Equal(t, int64(testClockMs), f.UpdatedMs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchWorkingStateStaleVersionIsConflict(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)
	sc := mockScope()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT goal, plan, decisions, state_version, extra, created_ms, updated_ms FROM working_state`).
		WithArgs(sc.Hash()).
		WillReturnRows(sqlmock.NewRows([]string{"goal", "plan", "decisions", "state_version", "extra", "created_ms", "updated_ms"}).
			AddRow("g", `["a"]`, `[]`, int64(5), `{}`, int64(1), int64(2)))
	mock.ExpectRollback()

	stale := int64(2)
	_, err := s.PatchWorkingState(context.Background(), sc, types.WorkingStatePatch{StateVersion: &stale})
	require.Error(t, err)
	require.Equal(t, storage.KindConflict, storage.ErrorKind(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchWorkingStateInsertsWhenAbsent(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)
	sc := mockScope()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT goal, plan, decisions, state_version, extra, created_ms, updated_ms FROM working_state`).
		WithArgs(sc.Hash()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO working_state.*ON DUPLICATE KEY UPDATE goal=VALUES\(goal\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	goal := "trip"
	ws, err := s.PatchWorkingState(context.Background(), sc, types.WorkingStatePatch{Goal: &goal})
	require.NoError(t, err)
	require.Equal(t, "trip", ws.Goal)
	require.Equal(t, int64(1), ws.StateVersion)
	require.Equal(t, int64(testClockMs), ws.CreatedMs)
	require.NoError(t, mock.ExpectationsWereMet())
}
