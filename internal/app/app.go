// Package app инициализирует все компоненты сервиса.
// app.go — точка сборки: создаёт БД-пул, кодек, движок леджера,
// сервисы, HTTP-обработчики и планировщик, и собирает всё в один объект.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/config"
	"socialites.app/coin-service/internal/db/postgres"
	"socialites.app/coin-service/internal/features/bonus"
	"socialites.app/coin-service/internal/features/ledger"
	"socialites.app/coin-service/internal/features/orders"
	"socialites.app/coin-service/internal/features/topup"
	"socialites.app/coin-service/internal/httpapi"
	"socialites.app/coin-service/internal/jobs"
	"socialites.app/coin-service/internal/payment"
	"socialites.app/coin-service/internal/seal"
)

// App содержит все компоненты приложения.
type App struct {
	HTTP      *fiber.App
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Кодек зашифрованных значений ===
	// Ключ проверен конфигом: без него до этой точки не доходим.
	codec, err := seal.New(cfg.CoinEncKey)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кодека: %w", err)
	}

	// === 3. Движок леджера — единственный писатель балансов ===
	store := ledger.NewPostgresStore(pool)
	engine := ledger.NewEngine(store, codec)

	// === 4. Платёжный провайдер ===
	midtrans := payment.NewMidtrans(
		cfg.MidtransServerKey, cfg.MidtransProduction,
		cfg.FrontendURL, cfg.TopupExpiryMinutes,
	)

	// === 5. Репозитории и сервисы ===
	bonusRepo := bonus.NewRepository(pool)
	bonusService := bonus.NewService(bonusRepo, engine)

	orderRepo := orders.NewRepository(pool)
	orderService := orders.NewService(engine, []byte(cfg.OrderSecret), cfg.OrderCodeAttempts)

	topupRepo := topup.NewRepository(pool)
	topupService := topup.NewService(
		topupRepo, engine, midtrans, codec,
		cfg.MidtransServerKey,
		time.Duration(cfg.TopupExpiryMinutes)*time.Minute,
	)

	// === 6. HTTP ===
	httpApp := fiber.New(fiber.Config{
		AppName:               "socialites-coin-service",
		DisableStartupMessage: cfg.AppEnv != "development",
	})
	handler := httpapi.NewHandler(engine, bonusService, orderService, orderRepo, topupService)
	handler.Register(httpApp)

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(topupService)

	log.Info("Приложение инициализировано")

	return &App{
		HTTP:      httpApp,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}

// runMigrations выполняет все SQL-миграции по порядку.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Ledger},
		{3, migration003Topups},
		{4, migration004Orders},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email VARCHAR(255) UNIQUE,
    coins_encrypted TEXT,
    daily_last_claimed_at TIMESTAMPTZ,
    daily_streak_day INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration002Ledger = `
CREATE TABLE IF NOT EXISTS coin_transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    amount BIGINT NOT NULL,
    type VARCHAR(10) NOT NULL,
    reason TEXT NOT NULL,
    meta JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_coin_transactions_user ON coin_transactions(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS coin_idempotency (
    user_id TEXT NOT NULL REFERENCES users(id),
    idempotency_key TEXT NOT NULL,
    response JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, idempotency_key)
);
`

var migration003Topups = `
CREATE TABLE IF NOT EXISTS coin_topups (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    coins_encrypted TEXT NOT NULL,
    price BIGINT NOT NULL,
    status_encrypted TEXT NOT NULL,
    midtrans_order_id TEXT UNIQUE NOT NULL,
    snap_token TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expired_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coin_topups_user ON coin_topups(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_coin_topups_expired ON coin_topups(expired_at);

CREATE TABLE IF NOT EXISTS midtrans_notifications (
    id BIGSERIAL PRIMARY KEY,
    midtrans_order_id TEXT NOT NULL,
    payload JSONB NOT NULL,
    received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_midtrans_notifications_order ON midtrans_notifications(midtrans_order_id);
`

var migration004Orders = `
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    order_code VARCHAR(16) UNIQUE NOT NULL,
    service_name VARCHAR(255) NOT NULL,
    service_amount INTEGER NOT NULL,
    coin_cost BIGINT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    service_token TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC);
`
