// Package ledger — postgres.go реализует Store поверх PostgreSQL.
// Блокировка счёта — SELECT ... FOR UPDATE на строке users, все отложенные
// записи уходят в базу одной транзакцией.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"socialites.app/coin-service/internal/common"
)

// PostgresStore — продакшен-реализация Store.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище леджера поверх пула соединений.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithAccount выполняет fn под эксклюзивной блокировкой строки пользователя.
//
// FOR UPDATE держит блокировку до конца транзакции: конкурентные операции
// по одному пользователю выстраиваются в очередь, по разным — не мешают
// друг другу. Кэша балансов нет — каждое чтение идёт в базу, поэтому
// несколько процессов сервиса не разъезжаются.
func (s *PostgresStore) WithAccount(ctx context.Context, userID string, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Захватываем строку счёта
	var encrypted *string
	err = tx.QueryRow(ctx,
		`SELECT coins_encrypted FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&encrypted)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка блокировки счёта: %w", err)
	}

	at := &pgAccountTx{tx: tx, userID: userID}
	if encrypted != nil {
		at.balance = *encrypted
	}

	if err := fn(at); err != nil {
		return err
	}

	if err := at.flush(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Entries возвращает последние записи леджера пользователя (новые первыми).
func (s *PostgresStore) Entries(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount, type, reason, meta, created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Direction, &e.Reason, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("битые метаданные транзакции %s: %w", e.ID, err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// pgAccountTx — единица работы над одним счётом.
// Записи копятся в памяти и уходят в базу одним flush перед коммитом.
type pgAccountTx struct {
	tx     pgx.Tx
	userID string

	balance    string // зашифрованный баланс, прочитанный под блокировкой
	balanceSet bool
	newBalance string
	entries    []*Entry
	orders     []*Order
	idemKey    string
	idemValue  []byte
}

func (t *pgAccountTx) EncryptedBalance() string { return t.balance }

func (t *pgAccountTx) SetEncryptedBalance(token string) {
	t.newBalance = token
	t.balanceSet = true
}

func (t *pgAccountTx) AppendEntry(e *Entry) { t.entries = append(t.entries, e) }

func (t *pgAccountTx) LookupIdempotency(ctx context.Context, key string) ([]byte, error) {
	var response []byte
	err := t.tx.QueryRow(ctx, `
		SELECT response FROM coin_idempotency
		WHERE user_id = $1 AND idempotency_key = $2
	`, t.userID, key).Scan(&response)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска ключа идемпотентности: %w", err)
	}
	return response, nil
}

func (t *pgAccountTx) StageIdempotency(key string, response []byte) {
	t.idemKey = key
	t.idemValue = response
}

func (t *pgAccountTx) OrderCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE order_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки кода заказа: %w", err)
	}
	return exists, nil
}

func (t *pgAccountTx) StageOrder(o *Order) { t.orders = append(t.orders, o) }

// flush пишет все отложенные изменения в рамках открытой транзакции.
func (t *pgAccountTx) flush(ctx context.Context) error {
	if t.balanceSet {
		_, err := t.tx.Exec(ctx,
			`UPDATE users SET coins_encrypted = $1 WHERE id = $2`,
			t.newBalance, t.userID,
		)
		if err != nil {
			return fmt.Errorf("ошибка обновления баланса: %w", err)
		}
	}

	for _, e := range t.entries {
		var meta []byte
		if len(e.Meta) > 0 {
			var err error
			meta, err = json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("ошибка сериализации метаданных: %w", err)
			}
		}
		_, err := t.tx.Exec(ctx, `
			INSERT INTO coin_transactions (id, user_id, amount, type, reason, meta, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, e.UserID, e.Amount, string(e.Direction), e.Reason, meta, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка записи транзакции: %w", err)
		}
	}

	for _, o := range t.orders {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, order_code, service_name, service_amount, coin_cost, status, service_token, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, o.ID, o.UserID, o.OrderCode, o.ServiceName, o.ServiceAmount, o.CoinCost, o.Status, o.ServiceToken, o.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка записи заказа: %w", err)
		}
	}

	// Гонка одинаковых ключей: проигравший дубль — не ошибка.
	// Блокировка строки счёта и так сериализует конкурентов, DO NOTHING
	// страхует от ключей, записанных другим процессом между ретраями.
	if t.idemKey != "" {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO coin_idempotency (user_id, idempotency_key, response)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, idempotency_key) DO NOTHING
		`, t.userID, t.idemKey, t.idemValue)
		if err != nil {
			return fmt.Errorf("ошибка записи ключа идемпотентности: %w", err)
		}
	}

	return nil
}
