package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dermai-backend/internal/metrics"
	"dermai-backend/internal/retry"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Store wraps every operation in a retried unit of work. Mutations run inside
// a transaction handle that is committed on success and rolled back otherwise.
type Store struct {
	db     *gorm.DB
	policy retry.Policy
}

func NewStore(db *gorm.DB, policy retry.Policy) *Store {
	return &Store{db: db, policy: policy.WithRetryable(IsTransient)}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Tx is a transaction-scoped handle. It is only valid inside WithTx.
type Tx struct {
	txn *gorm.DB
}

func (s *Store) WithTx(ctx context.Context, op string, fn func(tx *Tx) error) error {
	return s.policy.Do(ctx, op, func() error {
		defer metrics.ObserveDatabase(op, time.Now())

		err := s.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
			return fn(&Tx{txn: txn})
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("database transaction rolled back", "operation", op, "error", err)
		}
		return err
	})
}

func (s *Store) read(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return s.policy.Do(ctx, op, func() error {
		defer metrics.ObserveDatabase(op, time.Now())

		err := fn(s.db.WithContext(ctx))
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("database query failed", "operation", op, "error", err)
		}
		return err
	})
}

// IsTransient reports whether err is worth retrying: lock contention, dropped
// connections, serialization failures.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57P01":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "database is locked")
}

func (s *Store) Ping(ctx context.Context) error {
	return s.read(ctx, "ping", func(db *gorm.DB) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

func (tx *Tx) CreateChatMessage(msg *ChatMessage) error {
	if err := tx.txn.Create(msg).Error; err != nil {
		return fmt.Errorf("error saving chat message: %w", err)
	}
	return nil
}

func (tx *Tx) DeleteChatMessages(userID string) (int64, error) {
	result := tx.txn.Where("user_id = ?", userID).Delete(&ChatMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("error deleting chat history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (tx *Tx) CreateAnalysis(res *SkinAnalysisResult) error {
	if err := tx.txn.Create(res).Error; err != nil {
		return fmt.Errorf("error saving analysis result: %w", err)
	}
	return nil
}

func (tx *Tx) DeleteAnalysis(id uint) (SkinAnalysisResult, error) {
	var res SkinAnalysisResult
	if err := tx.txn.First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, ErrNotFound
		}
		return res, fmt.Errorf("error loading analysis %d: %w", id, err)
	}

	if err := tx.txn.Delete(&SkinAnalysisResult{}, "id = ?", id).Error; err != nil {
		return res, fmt.Errorf("error deleting analysis %d: %w", id, err)
	}
	return res, nil
}

func (tx *Tx) DeleteAnalysesBefore(cutoff time.Time) ([]SkinAnalysisResult, error) {
	var expired []SkinAnalysisResult
	if err := tx.txn.Where("timestamp < ?", cutoff).Find(&expired).Error; err != nil {
		return nil, fmt.Errorf("error listing expired analyses: %w", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(expired))
	for _, res := range expired {
		ids = append(ids, res.ID)
	}

	if err := tx.txn.Where("id IN ?", ids).Delete(&SkinAnalysisResult{}).Error; err != nil {
		return nil, fmt.Errorf("error deleting expired analyses: %w", err)
	}
	return expired, nil
}

// SaveChatTurn stores the user message and the reply in one transaction, user
// message first.
func (s *Store) SaveChatTurn(ctx context.Context, userID, userMessage, reply string) error {
	now := time.Now().UTC()
	return s.WithTx(ctx, "save_chat_turn", func(tx *Tx) error {
		if err := tx.CreateChatMessage(&ChatMessage{UserID: userID, Role: RoleUser, Content: userMessage, Timestamp: now}); err != nil {
			return err
		}
		return tx.CreateChatMessage(&ChatMessage{UserID: userID, Role: RoleAssistant, Content: reply, Timestamp: now})
	})
}

func (s *Store) ChatHistory(ctx context.Context, userID string) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := s.read(ctx, "chat_history", func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Order("timestamp ASC, id ASC").Find(&messages).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error loading chat history: %w", err)
	}
	return messages, nil
}

// RecentChatMessages returns at most limit of the newest messages, oldest first.
func (s *Store) RecentChatMessages(ctx context.Context, userID string, limit int) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := s.read(ctx, "recent_chat_messages", func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Order("timestamp DESC, id DESC").Limit(limit).Find(&messages).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error loading recent chat messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *Store) DeleteChatHistory(ctx context.Context, userID string) (int64, error) {
	var deleted int64
	err := s.WithTx(ctx, "delete_chat_history", func(tx *Tx) error {
		var err error
		deleted, err = tx.DeleteChatMessages(userID)
		return err
	})
	return deleted, err
}

func (s *Store) SaveAnalysis(ctx context.Context, res *SkinAnalysisResult) error {
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	return s.WithTx(ctx, "save_analysis", func(tx *Tx) error {
		res.ID = 0
		return tx.CreateAnalysis(res)
	})
}

// ListAnalyses returns the user's analyses, newest first.
func (s *Store) ListAnalyses(ctx context.Context, userID string) ([]SkinAnalysisResult, error) {
	var results []SkinAnalysisResult
	err := s.read(ctx, "list_analyses", func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Order("timestamp DESC, id DESC").Find(&results).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error listing analyses: %w", err)
	}
	return results, nil
}

func (s *Store) GetAnalysis(ctx context.Context, id uint, userID string) (SkinAnalysisResult, error) {
	var res SkinAnalysisResult
	err := s.read(ctx, "get_analysis", func(db *gorm.DB) error {
		err := db.Where("id = ? AND user_id = ?", id, userID).First(&res).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	return res, err
}

func (s *Store) DeleteAnalysis(ctx context.Context, id uint) (SkinAnalysisResult, error) {
	var deleted SkinAnalysisResult
	err := s.WithTx(ctx, "delete_analysis", func(tx *Tx) error {
		var err error
		deleted, err = tx.DeleteAnalysis(id)
		return err
	})
	return deleted, err
}

// DeleteAnalysesOlderThan removes analyses with timestamp strictly before
// cutoff and returns the removed rows so callers can delete their images.
func (s *Store) DeleteAnalysesOlderThan(ctx context.Context, cutoff time.Time) ([]SkinAnalysisResult, error) {
	var expired []SkinAnalysisResult
	err := s.WithTx(ctx, "delete_expired_analyses", func(tx *Tx) error {
		var err error
		expired, err = tx.DeleteAnalysesBefore(cutoff)
		return err
	})
	return expired, err
}
