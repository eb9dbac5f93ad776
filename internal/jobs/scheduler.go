// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает единственную регулярную задачу:
// гашение pending-топапов с истёкшим окном оплаты.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/features/topup"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron         *cron.Cron
	topupService *topup.Service
}

// NewScheduler создаёт планировщик задач.
// Все регулярные интервалы считаем в UTC — как и сутки бонусов.
func NewScheduler(topupService *topup.Service) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(time.UTC)),
		topupService: topupService,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Каждые 5 минут гасим истёкшие топапы.
	// Гашение никогда не зачисляет монеты — только переводит в failed.
	s.cron.AddFunc("@every 5m", func() {
		if _, err := s.topupService.ExpireStale(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка гашения истёкших топапов")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен")
}

// Stop останавливает планировщик, дождавшись текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
