// Package orders — repository.go: чтение заказов для истории.
// Запись заказов идёт НЕ здесь — строки вставляет единица работы леджера
// вместе с дебетом.
package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"socialites.app/coin-service/internal/features/ledger"
)

// Repository читает заказы из базы.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий заказов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]*ledger.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, order_code, service_name, service_amount, coin_cost, status, service_token, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заказов: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Order
	for rows.Next() {
		var o ledger.Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.OrderCode, &o.ServiceName,
			&o.ServiceAmount, &o.CoinCost, &o.Status, &o.ServiceToken, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заказа: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
