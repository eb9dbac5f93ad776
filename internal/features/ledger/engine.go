// Package ledger — engine.go содержит движок транзакций:
// ЕДИНСТВЕННУЮ точку, через которую меняются балансы.
// Ежедневный бонус, заказы и зачисление топапов — все сходятся сюда.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/common"
	"socialites.app/coin-service/internal/seal"
)

// Engine применяет операции к балансам.
type Engine struct {
	store Store       // Хранилище с блокировкой строк
	codec *seal.Codec // Кодек зашифрованных балансов
}

// NewEngine создаёт движок транзакций.
func NewEngine(store Store, codec *seal.Codec) *Engine {
	return &Engine{store: store, codec: codec}
}

// Apply атомарно применяет операцию к балансу пользователя.
//
// Алгоритм (весь — под эксклюзивной блокировкой строки счёта):
//  1. Если задан ключ идемпотентности — ищем сохранённый результат.
//     Нашли → возвращаем его как replay, баланс НЕ трогаем.
//  2. Расшифровываем текущий баланс. Ошибка расшифровки фатальна:
//     ни в коем случае не подставляем 0.
//  3. Считаем новый баланс. Дебет ниже нуля → ErrInsufficientFunds.
//  4. Даём Stage-хуку дописать свои строки в ту же единицу работы.
//  5. Откладываем новый баланс, запись леджера и запись идемпотентности.
//     Всё фиксируется одним коммитом — или ничего.
//
// Повтор с тем же ключом идемпотентности безопасен по построению,
// поэтому транзиентные ошибки хранилища можно ретраить снаружи.
func (e *Engine) Apply(ctx context.Context, op Operation) (*Result, error) {
	if op.Amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if op.Direction != DirectionCredit && op.Direction != DirectionDebit {
		return nil, fmt.Errorf("неизвестное направление операции: %q", op.Direction)
	}

	var res *Result
	err := e.store.WithAccount(ctx, op.UserID, func(tx Tx) error {
		// Шаг 1: идемпотентность
		if op.IdempotencyKey != "" {
			raw, err := tx.LookupIdempotency(ctx, op.IdempotencyKey)
			if err != nil {
				return err
			}
			if raw != nil {
				var stored Result
				if err := json.Unmarshal(raw, &stored); err != nil {
					return fmt.Errorf("битая запись идемпотентности: %w", err)
				}
				stored.Replayed = true
				res = &stored
				return nil
			}
		}

		// Шаг 2: текущий баланс (расшифровка под блокировкой)
		current, err := e.codec.DecryptInt(tx.EncryptedBalance())
		if err != nil {
			return err
		}

		// Шаг 3: новый баланс
		next := current
		switch op.Direction {
		case DirectionCredit:
			next = current + op.Amount
		case DirectionDebit:
			next = current - op.Amount
			if next < 0 {
				return common.ErrInsufficientFunds
			}
		}

		// Шаг 4: дополнительные строки той же единицы работы (заказы)
		if op.Stage != nil {
			if err := op.Stage(tx); err != nil {
				return err
			}
		}

		// Шаг 5: откладываем все записи
		token, err := e.codec.EncryptInt(next)
		if err != nil {
			return err
		}
		tx.SetEncryptedBalance(token)

		entry := &Entry{
			ID:        uuid.NewString(),
			UserID:    op.UserID,
			Amount:    op.Amount,
			Direction: op.Direction,
			Reason:    op.Reason,
			Meta:      op.Meta,
			CreatedAt: time.Now().UTC(),
		}
		tx.AppendEntry(entry)

		res = &Result{NewBalance: next, TransactionID: entry.ID}

		if op.IdempotencyKey != "" {
			raw, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("ошибка сериализации результата: %w", err)
			}
			tx.StageIdempotency(op.IdempotencyKey, raw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   op.UserID,
		"direction": op.Direction,
		"amount":    op.Amount,
		"balance":   res.NewBalance,
		"replayed":  res.Replayed,
	}).Debug("Операция леджера применена")

	return res, nil
}

// Balance возвращает текущий баланс пользователя.
// Чтение идёт через ту же блокировку счёта: расшифрованное значение
// живёт только внутри её скоупа, кэша балансов в памяти нет.
func (e *Engine) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := e.store.WithAccount(ctx, userID, func(tx Tx) error {
		b, err := e.codec.DecryptInt(tx.EncryptedBalance())
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// History возвращает последние записи леджера пользователя.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return e.store.Entries(ctx, userID, limit)
}
