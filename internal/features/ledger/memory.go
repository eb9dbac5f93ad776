// Package ledger — memory.go: реализация Store в памяти.
// Используется в тестах и для локального прогона без PostgreSQL.
// Контракт тот же: эксклюзивная блокировка счёта (мьютекс на пользователя),
// отложенные записи фиксируются только при успешном выходе из fn.
package ledger

import (
	"context"
	"sort"
	"sync"

	"socialites.app/coin-service/internal/common"
)

// MemoryStore — хранилище леджера в памяти.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*memAccount
	entries  []*Entry
	orders   []*Order
	idem     map[string]map[string][]byte // userID → key → response
}

type memAccount struct {
	mu      sync.Mutex
	balance string // зашифрованный баланс
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memAccount),
		idem:     make(map[string]map[string][]byte),
	}
}

// AddAccount регистрирует счёт с пустым балансом (расшифровывается в 0).
func (s *MemoryStore) AddAccount(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; !ok {
		s.accounts[userID] = &memAccount{}
	}
}

// SetEncryptedBalance напрямую подменяет хранимый токен баланса.
// Нужен тестам: смоделировать повреждённую запись в базе.
func (s *MemoryStore) SetEncryptedBalance(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[userID]; ok {
		acc.balance = token
	}
}

// Orders возвращает все зафиксированные заказы.
func (s *MemoryStore) Orders() []*Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// WithAccount сериализует операции по пользователю на его мьютексе.
func (s *MemoryStore) WithAccount(ctx context.Context, userID string, fn func(tx Tx) error) error {
	s.mu.Lock()
	acc, ok := s.accounts[userID]
	s.mu.Unlock()
	if !ok {
		return common.ErrUserNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	tx := &memTx{store: s, userID: userID, balance: acc.balance}
	if err := fn(tx); err != nil {
		return err // откат: отложенные записи просто выбрасываются
	}

	// Коммит
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.balanceSet {
		acc.balance = tx.newBalance
	}
	s.entries = append(s.entries, tx.entries...)
	s.orders = append(s.orders, tx.orders...)
	if tx.idemKey != "" {
		byUser, ok := s.idem[userID]
		if !ok {
			byUser = make(map[string][]byte)
			s.idem[userID] = byUser
		}
		// Дубль ключа — успех, не ошибка (контракт Store)
		if _, exists := byUser[tx.idemKey]; !exists {
			byUser[tx.idemKey] = tx.idemValue
		}
	}
	return nil
}

// Entries возвращает последние записи пользователя, новые первыми.
func (s *MemoryStore) Entries(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memTx — отложенные записи одной единицы работы.
type memTx struct {
	store  *MemoryStore
	userID string

	balance    string
	balanceSet bool
	newBalance string
	entries    []*Entry
	orders     []*Order
	idemKey    string
	idemValue  []byte
}

func (t *memTx) EncryptedBalance() string { return t.balance }

func (t *memTx) SetEncryptedBalance(token string) {
	t.newBalance = token
	t.balanceSet = true
}

func (t *memTx) AppendEntry(e *Entry) { t.entries = append(t.entries, e) }

func (t *memTx) LookupIdempotency(_ context.Context, key string) ([]byte, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if byUser, ok := t.store.idem[t.userID]; ok {
		if response, ok := byUser[key]; ok {
			return response, nil
		}
	}
	return nil, nil
}

func (t *memTx) StageIdempotency(key string, response []byte) {
	t.idemKey = key
	t.idemValue = response
}

func (t *memTx) OrderCodeExists(_ context.Context, code string) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, o := range t.store.orders {
		if o.OrderCode == code {
			return true, nil
		}
	}
	// Код мог быть занят заказом из этой же единицы работы
	for _, o := range t.orders {
		if o.OrderCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) StageOrder(o *Order) { t.orders = append(t.orders, o) }
