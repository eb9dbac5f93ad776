// Package bonus — service.go содержит бизнес-логику ежедневного бонуса.
// Оценка права пересчитывается на сервере в момент клейма,
// начисление идёт через движок леджера с ключом идемпотентности.
package bonus

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/common"
	"socialites.app/coin-service/internal/features/ledger"
)

// Crediter — начисление монет. Реализуется движком леджера.
type Crediter interface {
	Apply(ctx context.Context, op ledger.Operation) (*ledger.Result, error)
}

// Store — хранение состояния стрика на пользователе.
type Store interface {
	// DailyState возвращает состояние бонуса; common.ErrUserNotFound, если
	// пользователя нет.
	DailyState(ctx context.Context, userID string) (*State, error)
	// SetDailyState сохраняет момент клейма и день стрика.
	SetDailyState(ctx context.Context, userID string, claimedAt time.Time, streakDay int) error
}

// Service управляет ежедневным бонусом.
type Service struct {
	store  Store
	engine Crediter
	now    func() time.Time // подменяется в тестах
}

// NewService создаёт сервис ежедневного бонуса.
func NewService(store Store, engine Crediter) *Service {
	return &Service{store: store, engine: engine, now: time.Now}
}

// Status возвращает оценку права на бонус и текущий день стрика.
func (s *Service) Status(ctx context.Context, userID string) (*StatusResult, error) {
	st, err := s.store.DailyState(ctx, userID)
	if err != nil {
		return nil, err
	}
	ev := Evaluate(*st, s.now())
	return &StatusResult{
		Evaluation: ev,
		StreakDay:  st.StreakDay,
		Rewards:    RewardTable(),
	}, nil
}

// StatusResult — статус бонуса для выдачи клиенту.
type StatusResult struct {
	Evaluation
	StreakDay int         // Сохранённый день стрика (до клейма)
	Rewards   []DayReward // Вся таблица наград
}

// Claim начисляет ежедневный бонус.
//
// Алгоритм:
//  1. Читаем состояние и пересчитываем право ЗДЕСЬ (день от клиента не берём).
//  2. Не положено → common.ErrAlreadyClaimed.
//  3. Начисляем через движок с ключом идемпотентности вызывающего.
//  4. Состояние стрика двигаем ТОЛЬКО на свежем применении: replay
//     по старому ключу возвращает старый результат и стрик не трогает.
func (s *Service) Claim(ctx context.Context, userID, idempotencyKey string) (*ClaimResult, error) {
	st, err := s.store.DailyState(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ev := Evaluate(*st, now)
	if !ev.Eligible {
		return nil, common.ErrAlreadyClaimed
	}

	res, err := s.engine.Apply(ctx, ledger.Operation{
		UserID:         userID,
		Amount:         ev.NextReward,
		Direction:      ledger.DirectionCredit,
		Reason:         fmt.Sprintf("Daily Claim Day %d", ev.NextDay),
		Meta:           map[string]string{"streak_day": fmt.Sprintf("%d", ev.NextDay)},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	if !res.Replayed {
		if err := s.store.SetDailyState(ctx, userID, now, ev.NextDay); err != nil {
			// Монеты уже зачислены и зафиксированы; потерять продвижение
			// стрика неприятно, но не опасно — логируем и отдаём ошибку.
			log.WithError(err).WithField("user_id", userID).Error("Ошибка сохранения состояния стрика")
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"day":      ev.NextDay,
		"reward":   ev.NextReward,
		"replayed": res.Replayed,
	}).Info("Ежедневный бонус начислен")

	return &ClaimResult{
		Balance:       res.NewBalance,
		Added:         ev.NextReward,
		StreakDay:     ev.NextDay,
		TransactionID: res.TransactionID,
		Replayed:      res.Replayed,
	}, nil
}

// ClaimResult — итог клейма для выдачи клиенту.
type ClaimResult struct {
	Balance       int64  `json:"balance"`
	Added         int64  `json:"added"`
	StreakDay     int    `json:"streak_day"`
	TransactionID string `json:"transaction_id"`
	Replayed      bool   `json:"replayed,omitempty"`
}
