package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialites.app/coin-service/internal/common"
	"socialites.app/coin-service/internal/seal"
)

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 3)
	}
	codec, err := seal.New(key)
	require.NoError(t, err)

	store := NewMemoryStore()
	return NewEngine(store, codec), store
}

func TestEngine_CreditAndDebit(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	res, err := engine.Apply(ctx, Operation{
		UserID: "u1", Amount: 100, Direction: DirectionCredit, Reason: "Topup",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.NewBalance)
	assert.NotEmpty(t, res.TransactionID)
	assert.False(t, res.Replayed)

	res, err = engine.Apply(ctx, Operation{
		UserID: "u1", Amount: 30, Direction: DirectionDebit, Reason: "Order",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70), res.NewBalance)

	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)
}

func TestEngine_InvalidOperations(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	_, err := engine.Apply(ctx, Operation{UserID: "u1", Amount: 0, Direction: DirectionCredit})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = engine.Apply(ctx, Operation{UserID: "u1", Amount: -5, Direction: DirectionCredit})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = engine.Apply(ctx, Operation{UserID: "u1", Amount: 5, Direction: "transfer"})
	assert.Error(t, err)
}

func TestEngine_UserNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Apply(context.Background(), Operation{
		UserID: "ghost", Amount: 10, Direction: DirectionCredit,
	})
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = engine.Balance(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestEngine_InsufficientFunds(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	_, err := engine.Apply(ctx, Operation{UserID: "u1", Amount: 50, Direction: DirectionCredit})
	require.NoError(t, err)

	// Списание больше баланса: отказ, состояние не меняется
	_, err = engine.Apply(ctx, Operation{UserID: "u1", Amount: 51, Direction: DirectionDebit})
	require.ErrorIs(t, err, common.ErrInsufficientFunds)

	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	entries, err := engine.History(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "отказанный дебет не оставляет записи в леджере")

	// Ровно в ноль — можно
	res, err := engine.Apply(ctx, Operation{UserID: "u1", Amount: 50, Direction: DirectionDebit})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.NewBalance)
}

func TestEngine_IdempotentReplay(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	op := Operation{
		UserID: "u1", Amount: 25, Direction: DirectionCredit,
		Reason: "Daily Claim Day 1", IdempotencyKey: "claim-2026-09-01",
	}

	first, err := engine.Apply(ctx, op)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	// Повтор с тем же ключом: тот же результат, баланс не трогаем
	second, err := engine.Apply(ctx, op)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.NewBalance, second.NewBalance)
	assert.Equal(t, first.TransactionID, second.TransactionID)

	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)

	entries, err := engine.History(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "replay не создаёт вторую запись леджера")
}

func TestEngine_ConcurrentCredits(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Apply(ctx, Operation{
				UserID: "u1", Amount: 10, Direction: DirectionCredit, Reason: "race",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Блокировка счёта: потерянных обновлений не бывает
	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), balance)

	entries, err := engine.History(ctx, "u1", 100)
	require.NoError(t, err)
	assert.Len(t, entries, workers)
}

func TestEngine_TamperedBalanceFailsHard(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	_, err := engine.Apply(ctx, Operation{UserID: "u1", Amount: 100, Direction: DirectionCredit})
	require.NoError(t, err)

	// Порча токена в хранилище: любая операция — ошибка, не нулевой баланс
	store.SetEncryptedBalance("u1", "мусор-вместо-токена")

	_, err = engine.Balance(ctx, "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDecrypt))

	_, err = engine.Apply(ctx, Operation{UserID: "u1", Amount: 1, Direction: DirectionCredit})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDecrypt))
}

func TestEngine_StageHookRollsBack(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	_, err := engine.Apply(ctx, Operation{UserID: "u1", Amount: 100, Direction: DirectionCredit})
	require.NoError(t, err)

	boom := errors.New("stage failed")
	_, err = engine.Apply(ctx, Operation{
		UserID: "u1", Amount: 40, Direction: DirectionDebit,
		Stage: func(tx Tx) error { return boom },
	})
	require.ErrorIs(t, err, boom)

	// Ошибка Stage откатывает и дебет
	balance, err := engine.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestEngine_HistoryLimitClamped(t *testing.T) {
	engine, store := newTestEngine(t)
	store.AddAccount("u1")
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := engine.Apply(ctx, Operation{UserID: "u1", Amount: 1, Direction: DirectionCredit})
		require.NoError(t, err)
	}

	entries, err := engine.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 20, "некорректный limit приводится к 20")

	entries, err = engine.History(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}
