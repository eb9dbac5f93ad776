// Package bonus — repository.go читает и пишет состояние стрика
// в колонках таблицы users.
package bonus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"socialites.app/coin-service/internal/common"
)

// Repository — постоянное хранилище состояния бонуса.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий бонуса.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// DailyState возвращает состояние ежедневного бонуса пользователя.
func (r *Repository) DailyState(ctx context.Context, userID string) (*State, error) {
	var st State
	err := r.db.QueryRow(ctx, `
		SELECT daily_last_claimed_at, daily_streak_day
		FROM users WHERE id = $1
	`, userID).Scan(&st.LastClaimedAt, &st.StreakDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения состояния бонуса: %w", err)
	}
	return &st, nil
}

// SetDailyState сохраняет момент клейма и новый день стрика.
func (r *Repository) SetDailyState(ctx context.Context, userID string, claimedAt time.Time, streakDay int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET daily_last_claimed_at = $2, daily_streak_day = $3
		WHERE id = $1
	`, userID, claimedAt.UTC(), streakDay)
	if err != nil {
		return fmt.Errorf("ошибка сохранения состояния бонуса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}
