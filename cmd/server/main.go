package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/app"
	"socialites.app/coin-service/internal/config"
)

func main() {
	// .env нужен только для локальной разработки — в проде переменные
	// приходят из окружения контейнера
	if err := godotenv.Load(); err != nil {
		log.Debug("Файл .env не найден, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Ошибка инициализации приложения: %v", err)
	}
	defer application.DB.Close()

	application.Scheduler.Start(ctx)

	go func() {
		log.Infof("HTTP-сервер слушает %s", cfg.HTTPAddr)
		if err := application.HTTP.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Ошибка HTTP-сервера: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Получен сигнал завершения, останавливаемся...")

	cancel()
	application.Scheduler.Stop()

	if err := application.HTTP.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("Ошибка остановки HTTP-сервера")
	}

	log.Info("Сервис остановлен")
}

// setupLogging настраивает формат и уровень логирования.
func setupLogging(cfg *config.Config) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
