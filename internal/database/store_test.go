package database_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"dermai-backend/internal/database"
	"dermai-backend/internal/retry"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func createStore(t *testing.T) *database.Store {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return database.NewStore(db, testPolicy())
}

func TestMigrationsCreateTables(t *testing.T) {
	store := createStore(t)
	assert.True(t, database.VerifySchema(store.DB()))
	assert.True(t, store.DB().Migrator().HasIndex(&database.ChatMessage{}, "idx_chat_messages_user_time"))
}

func TestChatTurnOrdering(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveChatTurn(ctx, "u1", "hello", "hi there"))
	require.NoError(t, store.SaveChatTurn(ctx, "u1", "what is eczema?", "eczema is..."))
	require.NoError(t, store.SaveChatTurn(ctx, "u2", "other user", "reply"))

	history, err := store.ChatHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 4)

	assert.Equal(t, database.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, database.RoleAssistant, history[1].Role)
	assert.Equal(t, "hi there", history[1].Content)
	assert.Equal(t, "what is eczema?", history[2].Content)
	assert.Equal(t, "eczema is...", history[3].Content)
}

func TestRecentChatMessages(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	err := store.WithTx(ctx, "seed", func(tx *database.Tx) error {
		for i := 0; i < 20; i++ {
			msg := database.ChatMessage{
				UserID:    "u1",
				Role:      database.RoleUser,
				Content:   fmt.Sprintf("message %d", i),
				Timestamp: base.Add(time.Duration(i) * time.Second),
			}
			if err := tx.CreateChatMessage(&msg); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	recent, err := store.RecentChatMessages(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	for i, msg := range recent {
		assert.Equal(t, fmt.Sprintf("message %d", 15+i), msg.Content)
	}
}

func TestDeleteChatHistory(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveChatTurn(ctx, "u1", "hello", "hi"))
	require.NoError(t, store.SaveChatTurn(ctx, "u2", "hello", "hi"))

	deleted, err := store.DeleteChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	history, err := store.ChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)

	other, err := store.ChatHistory(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 2)
}

func newAnalysis(userID string, ts time.Time) *database.SkinAnalysisResult {
	return &database.SkinAnalysisResult{
		UserID:           userID,
		Timestamp:        ts,
		ImagePath:        "/tmp/" + userID + ".jpg",
		PrimaryCondition: "FU-ringworm",
		Confidence:       91.2,
		DetailedAnalysis: datatypes.JSON(`{"overview":["• scaly ring"]}`),
	}
}

func TestAnalysisCrud(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	older := newAnalysis("u1", time.Now().UTC().Add(-time.Hour))
	newer := newAnalysis("u1", time.Now().UTC())
	require.NoError(t, store.SaveAnalysis(ctx, older))
	require.NoError(t, store.SaveAnalysis(ctx, newer))
	require.NoError(t, store.SaveAnalysis(ctx, newAnalysis("u2", time.Now().UTC())))

	list, err := store.ListAnalyses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	got, err := store.GetAnalysis(ctx, older.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "FU-ringworm", got.PrimaryCondition)
	assert.JSONEq(t, `{"overview":["• scaly ring"]}`, string(got.DetailedAnalysis))

	_, err = store.GetAnalysis(ctx, older.ID, "u2")
	assert.ErrorIs(t, err, database.ErrNotFound)

	deleted, err := store.DeleteAnalysis(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.ImagePath, deleted.ImagePath)

	_, err = store.DeleteAnalysis(ctx, older.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDeleteAnalysesOlderThan(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	expired := newAnalysis("u1", now.Add(-31*24*time.Hour))
	fresh := newAnalysis("u1", now.Add(-29*24*time.Hour))
	require.NoError(t, store.SaveAnalysis(ctx, expired))
	require.NoError(t, store.SaveAnalysis(ctx, fresh))

	removed, err := store.DeleteAnalysesOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, expired.ID, removed[0].ID)

	remaining, err := store.ListAnalyses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestWithTxRollsBack(t *testing.T) {
	store := createStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, "rollback", func(tx *database.Tx) error {
		if err := tx.CreateChatMessage(&database.ChatMessage{UserID: "u1", Role: database.RoleUser, Content: "lost", Timestamp: time.Now().UTC()}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	history, err := store.ChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWithTxRetriesTransientErrors(t *testing.T) {
	store := createStore(t)

	calls := 0
	err := store.WithTx(context.Background(), "busy", func(tx *database.Tx) error {
		calls++
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, database.IsTransient(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.True(t, database.IsTransient(fmt.Errorf("wrapped: %w", sqlite3.Error{Code: sqlite3.ErrBusy})))
	assert.False(t, database.IsTransient(database.ErrNotFound))
	assert.False(t, database.IsTransient(errors.New("constraint failed")))
	assert.False(t, database.IsTransient(nil))
}
