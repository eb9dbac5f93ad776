// Package topup — repository.go выполняет операции с таблицами
// coin_topups и midtrans_notifications.
package topup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"socialites.app/coin-service/internal/common"
)

// Repository — постоянное хранилище топапов.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий топапов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create вставляет новое намерение покупки.
func (r *Repository) Create(ctx context.Context, t *Topup) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO coin_topups
			(id, user_id, coins_encrypted, price, status_encrypted, midtrans_order_id, snap_token, created_at, expired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.UserID, t.CoinsEncrypted, t.Price, t.StatusEncrypted, t.OrderRef, t.SnapToken, t.CreatedAt, t.ExpiredAt)
	if err != nil {
		return fmt.Errorf("ошибка создания топапа: %w", err)
	}
	return nil
}

// ByOrderRef ищет топап по внешнему order_id.
func (r *Repository) ByOrderRef(ctx context.Context, orderRef string) (*Topup, error) {
	var t Topup
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, coins_encrypted, price, status_encrypted, midtrans_order_id, snap_token, created_at, expired_at
		FROM coin_topups
		WHERE midtrans_order_id = $1
	`, orderRef).Scan(
		&t.ID, &t.UserID, &t.CoinsEncrypted, &t.Price, &t.StatusEncrypted,
		&t.OrderRef, &t.SnapToken, &t.CreatedAt, &t.ExpiredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTopupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска топапа: %w", err)
	}
	return &t, nil
}

// SetStatus записывает новый зашифрованный статус топапа.
func (r *Repository) SetStatus(ctx context.Context, id, statusEncrypted string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE coin_topups SET status_encrypted = $2 WHERE id = $1`,
		id, statusEncrypted,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса топапа: %w", err)
	}
	return nil
}

// LogNotification добавляет сырое уведомление в журнал аудита.
// Журнал append-only: бизнес-логика его не читает, он нужен
// для разбора инцидентов и реплея.
func (r *Repository) LogNotification(ctx context.Context, orderRef string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO midtrans_notifications (midtrans_order_id, payload)
		VALUES ($1, $2)
	`, orderRef, payload)
	if err != nil {
		return fmt.Errorf("ошибка записи уведомления в журнал: %w", err)
	}
	return nil
}

// ListExpired возвращает топапы с истёкшим окном оплаты.
// Статус зашифрован и в SQL не фильтруется — кандидатов отбираем
// по expired_at, а pending от терминальных отделяет сервис после расшифровки.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]*Topup, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, coins_encrypted, price, status_encrypted, midtrans_order_id, snap_token, created_at, expired_at
		FROM coin_topups
		WHERE expired_at < $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших топапов: %w", err)
	}
	defer rows.Close()
	return scanTopups(rows)
}

// ListByUser возвращает топапы пользователя, новые первыми.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]*Topup, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, coins_encrypted, price, status_encrypted, midtrans_order_id, snap_token, created_at, expired_at
		FROM coin_topups
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения топапов: %w", err)
	}
	defer rows.Close()
	return scanTopups(rows)
}

func scanTopups(rows pgx.Rows) ([]*Topup, error) {
	var out []*Topup
	for rows.Next() {
		var t Topup
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.CoinsEncrypted, &t.Price, &t.StatusEncrypted,
			&t.OrderRef, &t.SnapToken, &t.CreatedAt, &t.ExpiredAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования топапа: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
