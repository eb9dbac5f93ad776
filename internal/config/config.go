// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"encoding/base64"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// URL фронтенда для redirect-колбэков Midtrans (без завершающего слэша)
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"coinsvc"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"socialites"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Ключи ---
	// Мастер-ключ шифрования балансов: base64, ровно 32 байта после декодирования.
	// Без него сервис НЕ стартует — деградация до незашифрованных балансов недопустима.
	CoinEncKeyRaw string `envconfig:"COIN_ENC_KEY" required:"true"`
	CoinEncKey    []byte `envconfig:"-"` // заполним вручную
	// Секрет для HMAC-токенов заказов (отдельный от ключа шифрования)
	OrderSecret string `envconfig:"ORDER_SECRET" required:"true"`

	// --- Midtrans ---
	MidtransServerKey  string `envconfig:"MIDTRANS_SERVER_KEY" required:"true"`
	MidtransClientKey  string `envconfig:"MIDTRANS_CLIENT_KEY"`
	MidtransProduction bool   `envconfig:"MIDTRANS_IS_PRODUCTION" default:"false"`

	// --- Топапы ---
	// Срок жизни платёжной сессии (минуты). После истечения pending-топап гасится.
	TopupExpiryMinutes int `envconfig:"TOPUP_EXPIRY_MINUTES" default:"60"`

	// --- Заказы ---
	// Сколько раз пробуем сгенерировать уникальный код заказа, прежде чем сдаться
	OrderCodeAttempts int `envconfig:"ORDER_CODE_ATTEMPTS" default:"3"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if len(c.CoinEncKey) != 32 {
		return fmt.Errorf("COIN_ENC_KEY должен декодироваться ровно в 32 байта, получили %d", len(c.CoinEncKey))
	}
	if len(c.OrderSecret) < 16 {
		return fmt.Errorf("ORDER_SECRET слишком короткий (минимум 16 символов)")
	}
	if c.MidtransServerKey == "" {
		return fmt.Errorf("MIDTRANS_SERVER_KEY не задан")
	}
	if c.TopupExpiryMinutes <= 0 {
		return fmt.Errorf("TOPUP_EXPIRY_MINUTES должен быть > 0")
	}
	if c.OrderCodeAttempts <= 0 {
		return fmt.Errorf("ORDER_CODE_ATTEMPTS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(cfg.CoinEncKeyRaw)
	if err != nil {
		return nil, fmt.Errorf("COIN_ENC_KEY не является корректным base64: %w", err)
	}
	cfg.CoinEncKey = key

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
