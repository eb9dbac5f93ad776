package topup

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialites.app/coin-service/internal/common"
	"socialites.app/coin-service/internal/features/ledger"
	"socialites.app/coin-service/internal/seal"
)

const testServerKey = "SB-Mid-server-testkey"

// fakeTopupStore — хранилище топапов в памяти.
type fakeTopupStore struct {
	topups        map[string]*Topup // по order_ref
	notifications [][]byte
	failLog       bool
}

func newFakeTopupStore() *fakeTopupStore {
	return &fakeTopupStore{topups: make(map[string]*Topup)}
}

func (s *fakeTopupStore) Create(_ context.Context, t *Topup) error {
	s.topups[t.OrderRef] = t
	return nil
}

func (s *fakeTopupStore) ByOrderRef(_ context.Context, orderRef string) (*Topup, error) {
	t, ok := s.topups[orderRef]
	if !ok {
		return nil, common.ErrTopupNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTopupStore) SetStatus(_ context.Context, id, statusEncrypted string) error {
	for _, t := range s.topups {
		if t.ID == id {
			t.StatusEncrypted = statusEncrypted
			return nil
		}
	}
	return common.ErrTopupNotFound
}

func (s *fakeTopupStore) LogNotification(_ context.Context, _ string, payload []byte) error {
	if s.failLog {
		return errors.New("журнал недоступен")
	}
	s.notifications = append(s.notifications, payload)
	return nil
}

func (s *fakeTopupStore) ListExpired(_ context.Context, now time.Time) ([]*Topup, error) {
	var out []*Topup
	for _, t := range s.topups {
		if t.ExpiredAt.Before(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTopupStore) ListByUser(_ context.Context, userID string, _ int) ([]*Topup, error) {
	var out []*Topup
	for _, t := range s.topups {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeSessions — платёжные сессии без похода к провайдеру.
type fakeSessions struct {
	fail bool
}

func (f *fakeSessions) Create(_ context.Context, orderRef string, _, _ int64) (string, error) {
	if f.fail {
		return "", errors.New("провайдер недоступен")
	}
	return "snap-" + orderRef, nil
}

func newTestService(t *testing.T) (*Service, *fakeTopupStore, *ledger.MemoryStore, *ledger.Engine) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(255 - i)
	}
	codec, err := seal.New(key)
	require.NoError(t, err)

	memory := ledger.NewMemoryStore()
	memory.AddAccount("u1")
	engine := ledger.NewEngine(memory, codec)

	store := newFakeTopupStore()
	svc := NewService(store, engine, &fakeSessions{}, codec, testServerKey, time.Hour)
	return svc, store, memory, engine
}

// sign считает корректную подпись для уведомления.
func sign(n Notification) string {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + testServerKey))
	return hex.EncodeToString(sum[:])
}

func signedNotification(orderRef, transactionStatus, fraudStatus string) Notification {
	n := Notification{
		OrderID:           orderRef,
		StatusCode:        "200",
		GrossAmount:       "50000.00",
		TransactionStatus: transactionStatus,
		FraudStatus:       fraudStatus,
	}
	n.SignatureKey = sign(n)
	return n
}

func TestValidSignature(t *testing.T) {
	n := signedNotification("TOPUP-1", "settlement", "")
	assert.True(t, ValidSignature(n, testServerKey))

	// Другой ключ — подпись не сходится
	assert.False(t, ValidSignature(n, "other-key"))

	// Подмена любого подписанного поля
	forged := n
	forged.GrossAmount = "99999.00"
	assert.False(t, ValidSignature(forged, testServerKey))

	forged = n
	forged.SignatureKey = "deadbeef"
	assert.False(t, ValidSignature(forged, testServerKey))
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		txStatus, fraud, want string
	}{
		{"capture", "accept", StatusSuccess},
		{"capture", "challenge", StatusChallenge},
		{"capture", "", StatusPending},
		{"settlement", "", StatusSuccess},
		{"settlement", "accept", StatusSuccess},
		{"cancel", "", StatusFailed},
		{"deny", "", StatusFailed},
		{"expire", "", StatusFailed},
		{"pending", "", StatusPending},
		{"authorize", "", StatusPending},
		{"", "", StatusPending},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapStatus(tc.txStatus, tc.fraud),
			"status=%q fraud=%q", tc.txStatus, tc.fraud)
	}
}

func TestService_Create(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)
	assert.Contains(t, res.OrderRef, "TOPUP-")
	assert.Equal(t, "snap-"+res.OrderRef, res.SnapToken)

	stored := store.topups[res.OrderRef]
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, int64(50000), stored.Price)
	assert.Equal(t, time.Hour, stored.ExpiredAt.Sub(stored.CreatedAt))

	// Количество монет и статус лежат зашифрованными
	assert.NotContains(t, stored.CoinsEncrypted, "300")
	assert.NotEqual(t, StatusPending, stored.StatusEncrypted)
}

func TestService_CreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", 0, 50000)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = svc.Create(ctx, "u1", 300, -1)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestService_CreateProviderFailure(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	svc.sessions = &fakeSessions{fail: true}

	_, err := svc.Create(context.Background(), "u1", 300, 50000)
	require.Error(t, err)
	assert.Empty(t, store.topups, "без сессии провайдера топап не создаётся")
}

func TestService_ReconcileSettlementCreditsOnce(t *testing.T) {
	svc, store, _, engine := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)

	n := signedNotification(created.OrderRef, "settlement", "")
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))

	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	// Статус стал терминальным
	status, err := svc.codec.DecryptStatus(store.topups[created.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	// Дубль вебхука: no-op, монеты не задваиваются
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))
	balance, err = engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	// Оба уведомления в журнале аудита
	assert.Len(t, store.notifications, 2)
}

func TestService_ReconcileInvalidSignature(t *testing.T) {
	svc, store, _, engine := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)

	n := signedNotification(created.OrderRef, "settlement", "")
	n.SignatureKey = "0000"

	err = svc.Reconcile(ctx, []byte(`{}`), n)
	require.ErrorIs(t, err, common.ErrInvalidSignature)

	// Состояние не тронуто: ни зачисления, ни смены статуса
	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	status, err := svc.codec.DecryptStatus(store.topups[created.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	// Но в журнал аудита уведомление попало
	assert.Len(t, store.notifications, 1)
}

func TestService_ReconcileUnknownOrder(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	n := signedNotification("TOPUP-ghost", "settlement", "")
	err := svc.Reconcile(context.Background(), []byte(`{}`), n)
	assert.ErrorIs(t, err, common.ErrTopupNotFound)
}

func TestService_ReconcileCaptureChallenge(t *testing.T) {
	svc, store, _, engine := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)

	// capture+challenge: статус меняется, монет нет
	n := signedNotification(created.OrderRef, "capture", "challenge")
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))

	status, err := svc.codec.DecryptStatus(store.topups[created.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusChallenge, status)

	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	// challenge не терминален: accept после проверки зачисляет
	n = signedNotification(created.OrderRef, "capture", "accept")
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))

	balance, err = engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)
}

func TestService_ReconcileCancelIsTerminal(t *testing.T) {
	svc, store, _, engine := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)

	n := signedNotification(created.OrderRef, "cancel", "")
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))

	status, err := svc.codec.DecryptStatus(store.topups[created.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	// Settlement после cancel: терминальный статус неизменяем, монет нет
	n = signedNotification(created.OrderRef, "settlement", "")
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))

	status, err = svc.codec.DecryptStatus(store.topups[created.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestService_ReconcilePendingIsNoop(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)
	before := store.topups[created.OrderRef].StatusEncrypted

	n := signedNotification(created.OrderRef, "pending", "")
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))

	assert.Equal(t, before, store.topups[created.OrderRef].StatusEncrypted)
}

func TestService_ReconcileAuditLogFailureDoesNotBlock(t *testing.T) {
	svc, store, _, engine := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)

	// Падение журнала не блокирует сверку
	store.failLog = true
	n := signedNotification(created.OrderRef, "settlement", "")
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`), n))

	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)
}

func TestService_ExpireStale(t *testing.T) {
	svc, store, _, engine := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// Истёкший pending
	stale, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)
	store.topups[stale.OrderRef].ExpiredAt = now.Add(-time.Minute)

	// Истёкший, но уже успешный — не трогаем
	paid, err := svc.Create(ctx, "u1", 100, 20000)
	require.NoError(t, err)
	store.topups[paid.OrderRef].ExpiredAt = now.Add(-time.Minute)
	require.NoError(t, svc.Reconcile(ctx, []byte(`{}`),
		signedNotification(paid.OrderRef, "settlement", "")))
	store.topups[paid.OrderRef].ExpiredAt = now.Add(-time.Minute)

	// Живой pending
	fresh, err := svc.Create(ctx, "u1", 50, 10000)
	require.NoError(t, err)
	store.topups[fresh.OrderRef].ExpiredAt = now.Add(time.Hour)

	count, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	status, err := svc.codec.DecryptStatus(store.topups[stale.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	status, err = svc.codec.DecryptStatus(store.topups[paid.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status, "оплаченный топап гашением не трогается")

	status, err = svc.codec.DecryptStatus(store.topups[fresh.OrderRef].StatusEncrypted)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	// Гашение никогда не зачисляет монеты
	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestService_ListByUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", 300, 50000)
	require.NoError(t, err)

	views, err := svc.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, created.OrderRef, views[0].OrderRef)
	assert.Equal(t, int64(300), views[0].Coins)
	assert.Equal(t, StatusPending, views[0].Status)
}
