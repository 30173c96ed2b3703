package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/openpost-io/openpost/internal/config"
)

type DatabaseTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

func (s *DatabaseTestSuite) SetupTest() {
	cfg := &config.Config{}
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = filepath.Join(s.T().TempDir(), "test.db")

	s.db = New(cfg)
	s.ctx = context.Background()
	s.Require().NoError(s.db.Connect())
}

func (s *DatabaseTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func (s *DatabaseTestSuite) TestMigrationsAreIdempotent() {
	// Connect already ran the migrations once; a second pass must be a no-op.
	s.Require().NoError(RunMigrations(s.db.conn, "sqlite"))

	rows, err := s.db.Query(s.ctx, "SELECT version FROM schema_migrations ORDER BY version")
	s.Require().NoError(err)
	s.Len(rows, len(GetMigrations("sqlite")))
}

func (s *DatabaseTestSuite) TestExecReturnsInsertedID() {
	res, err := s.db.Exec(s.ctx,
		"INSERT INTO users (username, last_login) VALUES (?, ?)", "alice", time.Now().UTC())
	s.Require().NoError(err)
	s.Greater(res.InsertedID, int64(0))
	s.Equal(int64(1), res.RowsAffected)

	res2, err := s.db.Exec(s.ctx,
		"INSERT INTO users (username, last_login) VALUES (?, ?)", "bob", time.Now().UTC())
	s.Require().NoError(err)
	s.Greater(res2.InsertedID, res.InsertedID)
}

func (s *DatabaseTestSuite) TestQueryReturnsOrderedRows() {
	for _, name := range []string{"carol", "dave", "erin"} {
		_, err := s.db.Exec(s.ctx, "INSERT INTO users (username) VALUES (?)", name)
		s.Require().NoError(err)
	}

	rows, err := s.db.Query(s.ctx, "SELECT id, username FROM users ORDER BY id")
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("carol", rows[0].String("username"))
	s.Equal("dave", rows[1].String("username"))
	s.Equal("erin", rows[2].String("username"))
}

func (s *DatabaseTestSuite) TestQueryNoMatchesIsEmptyNotError() {
	rows, err := s.db.Query(s.ctx, "SELECT id FROM users WHERE username = ?", "nobody")
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *DatabaseTestSuite) TestUniqueConstraintSurfacesAsStorageError() {
	_, err := s.db.Exec(s.ctx, "INSERT INTO users (username) VALUES (?)", "frank")
	s.Require().NoError(err)

	_, err = s.db.Exec(s.ctx, "INSERT INTO users (username) VALUES (?)", "frank")
	s.Require().Error(err)

	var storageErr *StorageError
	s.ErrorAs(err, &storageErr)
	s.NotNil(storageErr.Err)
}

func (s *DatabaseTestSuite) TestExecReportsRowsAffected() {
	for _, name := range []string{"grace", "heidi"} {
		_, err := s.db.Exec(s.ctx, "INSERT INTO users (username) VALUES (?)", name)
		s.Require().NoError(err)
	}

	res, err := s.db.Exec(s.ctx, "DELETE FROM users WHERE username LIKE ?", "%i%")
	s.Require().NoError(err)
	s.Equal(int64(1), res.RowsAffected)
}

func (s *DatabaseTestSuite) TestConnectIsIdempotent() {
	s.NoError(s.db.Connect())
}

func TestRebindPostgres(t *testing.T) {
	d := &DB{driver: "postgres"}
	got := d.rebind("INSERT INTO sessions (user_id, session_token, expires_at) VALUES (?, ?, ?)")
	assert.Equal(t, "INSERT INTO sessions (user_id, session_token, expires_at) VALUES ($1, $2, $3)", got)
}

func TestRebindSQLiteIsUntouched(t *testing.T) {
	d := &DB{driver: "sqlite"}
	query := "SELECT id FROM users WHERE username = ?"
	assert.Equal(t, query, d.rebind(query))
}

func TestIsInsert(t *testing.T) {
	assert.True(t, isInsert("INSERT INTO users (username) VALUES (?)"))
	assert.True(t, isInsert("  insert into users (username) values (?)"))
	assert.False(t, isInsert("UPDATE users SET username = ?"))
	assert.False(t, isInsert("DELETE FROM users"))
}

func TestRowAccessors(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	row := Row{
		"id":         int64(7),
		"username":   []byte("alice"),
		"created_at": now,
		"raw_time":   "2025-06-01 12:30:00",
	}

	assert.Equal(t, int64(7), row.Int64("id"))
	assert.Equal(t, "alice", row.String("username"))
	assert.Equal(t, now, row.Time("created_at"))
	assert.Equal(t, now, row.Time("raw_time").UTC())

	assert.Zero(t, row.Int64("missing"))
	assert.Empty(t, row.String("missing"))
	assert.True(t, row.Time("missing").IsZero())
}
