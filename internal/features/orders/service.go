// Package orders — service.go: оформление заказа.
// Списание монет, подбор уникального кода и вставка строки заказа
// происходят в ОДНОЙ единице работы движка леджера: либо всё, либо ничего.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/common"
	"socialites.app/coin-service/internal/features/ledger"
)

// Debiter — списание монет. Реализуется движком леджера.
type Debiter interface {
	Apply(ctx context.Context, op ledger.Operation) (*ledger.Result, error)
}

// Service оформляет заказы.
type Service struct {
	engine       Debiter
	secret       []byte // секрет сервисных токенов
	codeAttempts int    // лимит попыток подбора кода
	genCode      func() string
}

// NewService создаёт сервис заказов.
func NewService(engine Debiter, secret []byte, codeAttempts int) *Service {
	return &Service{
		engine:       engine,
		secret:       secret,
		codeAttempts: codeAttempts,
		genCode:      GenerateCode,
	}
}

// CreateResult — итог оформления заказа.
type CreateResult struct {
	OrderID    string `json:"order_id"`
	OrderCode  string `json:"order_code"`
	NewBalance int64  `json:"new_balance"`
	Status     string `json:"status"`
}

// Create оформляет заказ услуги за монеты.
//
// Внутри одной единицы работы (под блокировкой счёта):
//   - дебет на coinCost (нехватка монет откатывает всё, заказа не будет);
//   - подбор свободного кода заказа с ограниченным числом попыток;
//   - вставка строки заказа с HMAC сервисным токеном.
func (s *Service) Create(ctx context.Context, userID, serviceName string, serviceAmount int, coinCost int64) (*CreateResult, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("название услуги не задано")
	}
	if serviceAmount <= 0 || coinCost <= 0 {
		return nil, common.ErrInvalidAmount
	}

	orderID := uuid.NewString()
	meta := map[string]string{"order_id": orderID}
	var order *ledger.Order

	res, err := s.engine.Apply(ctx, ledger.Operation{
		UserID:    userID,
		Amount:    coinCost,
		Direction: ledger.DirectionDebit,
		Reason:    fmt.Sprintf("Order: %s x%d", serviceName, serviceAmount),
		Meta:      meta,
		Stage: func(tx ledger.Tx) error {
			code, err := s.pickCode(ctx, tx)
			if err != nil {
				return err
			}
			meta["order_code"] = code

			order = &ledger.Order{
				ID:            orderID,
				UserID:        userID,
				OrderCode:     code,
				ServiceName:   serviceName,
				ServiceAmount: serviceAmount,
				CoinCost:      coinCost,
				Status:        "pending",
				ServiceToken:  ServiceToken(s.secret, orderID, userID, serviceName, serviceAmount),
				CreatedAt:     time.Now().UTC(),
			}
			tx.StageOrder(order)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"order_code": order.OrderCode,
		"service":    serviceName,
		"cost":       coinCost,
	}).Info("Заказ оформлен")

	return &CreateResult{
		OrderID:    orderID,
		OrderCode:  order.OrderCode,
		NewBalance: res.NewBalance,
		Status:     order.Status,
	}, nil
}

// pickCode подбирает свободный код заказа.
// Проверка идёт в той же транзакции; исчерпание попыток —
// common.ErrOrderCodeExhausted (транзиентная ошибка, клиент может повторить).
func (s *Service) pickCode(ctx context.Context, tx ledger.Tx) (string, error) {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code := s.genCode()
		exists, err := tx.OrderCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", common.ErrOrderCodeExhausted
}
