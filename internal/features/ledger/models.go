// Package ledger управляет монетными балансами пользователей.
// models.go описывает структуры леджера: операции, записи, заказы.
package ledger

import "time"

// Direction — направление движения монет.
type Direction string

const (
	// DirectionCredit — начисление монет
	DirectionCredit Direction = "credit"
	// DirectionDebit — списание монет
	DirectionDebit Direction = "debit"
)

// Operation описывает одну атомарную операцию над балансом.
type Operation struct {
	UserID    string    // Чей баланс меняем
	Amount    int64     // Сумма (всегда положительная)
	Direction Direction // credit или debit
	Reason    string    // Описание для истории (например "Daily Claim Day 4")
	Meta      map[string]string // Структурированные метаданные записи

	// IdempotencyKey — необязательный ключ идемпотентности.
	// Повтор операции с тем же ключом вернёт сохранённый результат
	// и НЕ тронет баланс. Ключи скоупятся по пользователю.
	IdempotencyKey string

	// Stage даёт возможность добавить в ту же единицу работы
	// дополнительные записи (например строку заказа). Вызывается внутри
	// блокировки счёта, ПОСЛЕ расчёта нового баланса, но ДО фиксации.
	// Ошибка из Stage откатывает всю операцию целиком.
	Stage func(tx Tx) error
}

// Result — итог применённой операции.
type Result struct {
	NewBalance    int64  `json:"new_balance"`    // Баланс после операции
	TransactionID string `json:"transaction_id"` // ID записи леджера
	// Replayed = true, если результат взят из записи идемпотентности,
	// а не применён заново. В базу не сохраняется.
	Replayed bool `json:"-"`
}

// Entry — запись леджера. Append-only: после вставки не меняется
// и не удаляется никогда. Сумма подписанных записей пользователя
// равна его текущему балансу (инвариант для аудита).
type Entry struct {
	ID        string            // UUID записи
	UserID    string            // Чья операция
	Amount    int64             // Сумма (положительная)
	Direction Direction         // credit или debit
	Reason    string            // Человекочитаемое описание
	Meta      map[string]string // Метаданные (idempotency key, order id, ...)
	CreatedAt time.Time
}

// Order — заказ услуги, оплаченный монетами.
// Строка заказа вставляется в ТОЙ ЖЕ единице работы, что и дебет
// с записью леджера: заказа без списания не бывает.
type Order struct {
	ID            string // UUID заказа
	UserID        string
	OrderCode     string // Человекочитаемый код вида SB-1234, уникальный
	ServiceName   string // Название услуги ("instagram_followers", ...)
	ServiceAmount int    // Количество единиц услуги
	CoinCost      int64  // Стоимость в монетах
	Status        string // pending / processing / done — ведёт фулфилмент
	// ServiceToken — HMAC над (id, user, service, amount): даунстрим
	// проверяет подлинность заказа без похода в базу.
	ServiceToken string
	CreatedAt    time.Time
}
