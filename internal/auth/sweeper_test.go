package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openpost-io/openpost/internal/config"
	"github.com/openpost-io/openpost/internal/database"
)

func TestSweeperReapsExpiredSessionsAndStopsOnCancel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")

	db := database.New(cfg)
	require.NoError(t, db.Connect())
	defer db.Close()

	service := NewService(db)
	ctx := context.Background()

	result, err := service.Login(ctx, "alice")
	require.NoError(t, err)
	_, err = db.Exec(ctx,
		"UPDATE sessions SET expires_at = ? WHERE session_token = ?",
		time.Now().UTC().Add(-time.Minute), result.SessionToken)
	require.NoError(t, err)

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		service.RunSweeper(sweepCtx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rows, err := db.Query(ctx,
			"SELECT id FROM sessions WHERE session_token = ?", result.SessionToken)
		return err == nil && len(rows) == 0
	}, 2*time.Second, 10*time.Millisecond, "sweeper should reap the expired session")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
