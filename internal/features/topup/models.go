// Package topup управляет покупкой монет через платёжного провайдера.
// models.go описывает намерение покупки и уведомление вебхука.
package topup

import "time"

// Статусы топапа. pending → {success, failed, challenge};
// success и failed терминальны — из них топап уже не выходит.
const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusChallenge = "challenge"
)

// Topup — намерение покупки монет.
// Количество монет и статус хранятся зашифрованными: прямое редактирование
// строки в базе не позволит ни накрутить монеты, ни «засчитать» оплату.
type Topup struct {
	ID              string    // UUID записи
	UserID          string
	CoinsEncrypted  string    // Количество покупаемых монет (токен seal)
	Price           int64     // Цена в минимальных единицах валюты
	StatusEncrypted string    // Статус (токен seal)
	OrderRef        string    // Внешний order_id, уникален; ключ идемпотентности зачисления
	SnapToken       string    // Токен платёжной сессии провайдера
	CreatedAt       time.Time
	ExpiredAt       time.Time // Конец окна оплаты
}

// Notification — тело вебхука Midtrans (нужные нам поля).
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}
