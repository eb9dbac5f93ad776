// Package ledger — store.go описывает контракт хранилища.
// Вся безопасность конкурентного доступа живёт здесь: хранилище обязано
// дать эксклюзивную блокировку строки счёта на время единицы работы.
package ledger

import "context"

// Store — единица работы над одним счётом.
//
// Реализации: PostgresStore (продакшен, SELECT ... FOR UPDATE) и
// MemoryStore (тесты и локальный прогон, мьютекс на счёт).
type Store interface {
	// WithAccount захватывает эксклюзивную блокировку счёта userID,
	// выполняет fn и атомарно фиксирует все отложенные записи.
	// Любая ошибка из fn откатывает ВСЁ: ни частичного обновления баланса,
	// ни осиротевших записей леджера.
	//
	// Возвращает common.ErrUserNotFound, если счёта нет.
	// Конкурентные вызовы по одному пользователю сериализуются на блокировке,
	// по разным пользователям идут параллельно.
	WithAccount(ctx context.Context, userID string, fn func(tx Tx) error) error

	// Entries возвращает последние записи леджера пользователя (новые первыми).
	Entries(ctx context.Context, userID string, limit int) ([]*Entry, error)
}

// Tx — операции, доступные внутри захваченной единицы работы.
// Методы Set*/Append*/Stage* откладывают записи: в базу они попадают
// одним коммитом при успешном выходе из fn.
type Tx interface {
	// EncryptedBalance — зашифрованный баланс, прочитанный под блокировкой.
	// Пустая строка = баланса ещё не было (свежий аккаунт).
	EncryptedBalance() string

	// SetEncryptedBalance откладывает запись нового зашифрованного баланса.
	SetEncryptedBalance(token string)

	// AppendEntry откладывает вставку записи леджера.
	AppendEntry(e *Entry)

	// LookupIdempotency ищет сохранённый результат операции с этим ключом
	// у ЭТОГО пользователя. nil — ключа ещё не было.
	LookupIdempotency(ctx context.Context, key string) ([]byte, error)

	// StageIdempotency откладывает запись результата под ключом.
	// Гонку одинаковых ключей хранилище обязано пережить без ошибки:
	// проигравший дубль считается успехом, не сбоем.
	StageIdempotency(key string, response []byte)

	// OrderCodeExists проверяет занятость человекочитаемого кода заказа.
	OrderCodeExists(ctx context.Context, code string) (bool, error)

	// StageOrder откладывает вставку строки заказа в эту же единицу работы.
	StageOrder(o *Order)
}
