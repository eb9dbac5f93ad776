// Package topup — service.go: жизненный цикл покупки монет.
// Создание намерения с платёжной сессией провайдера и сверка
// асинхронных вебхуков с зачислением ровно один раз.
package topup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/common"
	"socialites.app/coin-service/internal/features/ledger"
	"socialites.app/coin-service/internal/seal"
)

// Crediter — зачисление монет. Реализуется движком леджера.
type Crediter interface {
	Apply(ctx context.Context, op ledger.Operation) (*ledger.Result, error)
}

// Store — постоянное хранилище топапов.
type Store interface {
	Create(ctx context.Context, t *Topup) error
	ByOrderRef(ctx context.Context, orderRef string) (*Topup, error)
	SetStatus(ctx context.Context, id, statusEncrypted string) error
	LogNotification(ctx context.Context, orderRef string, payload []byte) error
	ListExpired(ctx context.Context, now time.Time) ([]*Topup, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Topup, error)
}

// Sessions — создание платёжной сессии у провайдера.
type Sessions interface {
	Create(ctx context.Context, orderRef string, grossAmount, coins int64) (string, error)
}

// Service управляет топапами.
type Service struct {
	store     Store
	engine    Crediter
	sessions  Sessions
	codec     *seal.Codec
	serverKey string        // серверный ключ провайдера (подписи вебхуков)
	expiry    time.Duration // окно оплаты
	now       func() time.Time
}

// NewService создаёт сервис топапов.
func NewService(store Store, engine Crediter, sessions Sessions, codec *seal.Codec, serverKey string, expiry time.Duration) *Service {
	return &Service{
		store:     store,
		engine:    engine,
		sessions:  sessions,
		codec:     codec,
		serverKey: serverKey,
		expiry:    expiry,
		now:       time.Now,
	}
}

// CreateResult — итог создания намерения покупки.
type CreateResult struct {
	OrderRef  string `json:"order_ref"`
	SnapToken string `json:"snap_token"`
}

// Create открывает pending-намерение покупки монет.
// Сначала платёжная сессия у провайдера, потом строка в базе:
// топап без сессии бесполезен, а сессия без топапа просто истечёт.
func (s *Service) Create(ctx context.Context, userID string, coins, price int64) (*CreateResult, error) {
	if coins <= 0 || price <= 0 {
		return nil, common.ErrInvalidAmount
	}

	orderRef := "TOPUP-" + uuid.NewString()

	snapToken, err := s.sessions.Create(ctx, orderRef, price, coins)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания платёжной сессии: %w", err)
	}

	coinsEnc, err := s.codec.EncryptInt(coins)
	if err != nil {
		return nil, err
	}
	statusEnc, err := s.codec.EncryptStatus(StatusPending)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Topup{
		ID:              uuid.NewString(),
		UserID:          userID,
		CoinsEncrypted:  coinsEnc,
		Price:           price,
		StatusEncrypted: statusEnc,
		OrderRef:        orderRef,
		SnapToken:       snapToken,
		CreatedAt:       now,
		ExpiredAt:       now.Add(s.expiry),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"order_ref": orderRef,
		"coins":     coins,
		"price":     price,
	}).Info("Топап создан")

	return &CreateResult{OrderRef: orderRef, SnapToken: snapToken}, nil
}

// Reconcile сверяет уведомление вебхука с состоянием топапа.
//
// Контракт к провайдеру: HTTP-ответ ВСЕГДА 200, поэтому ошибка отсюда —
// сигнал для логов, а не для ответа. Порядок шагов жёсткий:
//  1. Сырое уведомление — в журнал аудита, безусловно и первым делом.
//  2. Проверка подписи. Не сошлась — стоп, состояние не трогаем.
//  3. Поиск топапа. Чужой order_id — стоп.
//  4. Терминальный статус — стоп: повторный вебхук это no-op.
//  5. Маппинг статуса провайдера по фиксированной таблице.
//  6. Новый нетерминальный pending — no-op; иначе пишем статус,
//     и на success зачисляем монеты через движок. Ключ идемпотентности —
//     сам order_ref: даже если бы шаг 4 обошли, второго зачисления не будет.
func (s *Service) Reconcile(ctx context.Context, raw []byte, n Notification) error {
	// Шаг 1: аудит
	if err := s.store.LogNotification(ctx, n.OrderID, raw); err != nil {
		log.WithError(err).WithField("order_ref", n.OrderID).Error("Не удалось записать уведомление в журнал")
		// Журнал не должен блокировать сверку — продолжаем
	}

	// Шаг 2: подпись
	if !ValidSignature(n, s.serverKey) {
		log.WithField("order_ref", n.OrderID).Warn("Вебхук с неверной подписью отброшен")
		return common.ErrInvalidSignature
	}

	// Шаг 3: топап
	t, err := s.store.ByOrderRef(ctx, n.OrderID)
	if err != nil {
		return err
	}

	current, err := s.codec.DecryptStatus(t.StatusEncrypted)
	if err != nil {
		return err
	}

	// Шаг 4: терминальные статусы неизменяемы
	if current == StatusSuccess || current == StatusFailed {
		log.WithFields(log.Fields{"order_ref": n.OrderID, "status": current}).
			Debug("Повторный вебхук для завершённого топапа — пропускаем")
		return nil
	}

	// Шаг 5: маппинг
	mapped := MapStatus(n.TransactionStatus, n.FraudStatus)

	// Шаг 6: переход
	if mapped == current || mapped == StatusPending {
		return nil
	}

	statusEnc, err := s.codec.EncryptStatus(mapped)
	if err != nil {
		return err
	}
	if err := s.store.SetStatus(ctx, t.ID, statusEnc); err != nil {
		return err
	}

	if mapped == StatusSuccess {
		coins, err := s.codec.DecryptInt(t.CoinsEncrypted)
		if err != nil {
			return err
		}
		res, err := s.engine.Apply(ctx, ledger.Operation{
			UserID:    t.UserID,
			Amount:    coins,
			Direction: ledger.DirectionCredit,
			Reason:    "Topup " + t.OrderRef,
			Meta:      map[string]string{"topup_id": t.ID},
			// order_ref как ключ идемпотентности: дубль settlement
			// зачисляет монеты максимум один раз
			IdempotencyKey: t.OrderRef,
		})
		if err != nil {
			log.WithError(err).WithField("order_ref", t.OrderRef).Error("Ошибка зачисления монет за топап")
			return err
		}
		log.WithFields(log.Fields{
			"user_id":   t.UserID,
			"order_ref": t.OrderRef,
			"coins":     coins,
			"balance":   res.NewBalance,
			"replayed":  res.Replayed,
		}).Info("Монеты за топап зачислены")
	} else {
		log.WithFields(log.Fields{"order_ref": t.OrderRef, "status": mapped}).Info("Статус топапа обновлён")
	}

	return nil
}

// ExpireStale гасит pending-топапы с истёкшим окном оплаты.
// Зачисления здесь не бывает: истечение — это только failed.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.store.ListExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, t := range stale {
		status, err := s.codec.DecryptStatus(t.StatusEncrypted)
		if err != nil {
			log.WithError(err).WithField("order_ref", t.OrderRef).Error("Битый статус топапа — пропускаем")
			continue
		}
		if status != StatusPending && status != StatusChallenge {
			continue
		}
		statusEnc, err := s.codec.EncryptStatus(StatusFailed)
		if err != nil {
			return expired, err
		}
		if err := s.store.SetStatus(ctx, t.ID, statusEnc); err != nil {
			log.WithError(err).WithField("order_ref", t.OrderRef).Error("Не удалось погасить истёкший топап")
			continue
		}
		expired++
	}

	if expired > 0 {
		log.WithField("count", expired).Info("Истёкшие топапы погашены")
	}
	return expired, nil
}

// View — топап для выдачи клиенту (с расшифрованными полями).
type View struct {
	OrderRef  string    `json:"order_ref"`
	Coins     int64     `json:"coins"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiredAt time.Time `json:"expired_at"`
}

// ListByUser возвращает топапы пользователя с расшифровкой для отображения.
// Расшифровка жёсткая: битая запись — ошибка, а не нули в ответе.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]*View, error) {
	topups, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*View, 0, len(topups))
	for _, t := range topups {
		coins, err := s.codec.DecryptInt(t.CoinsEncrypted)
		if err != nil {
			return nil, err
		}
		status, err := s.codec.DecryptStatus(t.StatusEncrypted)
		if err != nil {
			return nil, err
		}
		out = append(out, &View{
			OrderRef:  t.OrderRef,
			Coins:     coins,
			Price:     t.Price,
			Status:    status,
			CreatedAt: t.CreatedAt,
			ExpiredAt: t.ExpiredAt,
		})
	}
	return out, nil
}
