// Package bonus — evaluator.go: чистая функция определения права на бонус.
// Никаких походов в базу: только сохранённое состояние стрика и «сейчас».
package bonus

import (
	"time"

	"socialites.app/coin-service/internal/common"
)

// State — состояние ежедневного бонуса, хранимое на пользователе.
type State struct {
	// LastClaimedAt — момент последнего успешного клейма. nil = никогда.
	LastClaimedAt *time.Time
	// StreakDay — день стрика последнего клейма (1–7, 0 = никогда не клеймил)
	StreakDay int
}

// Evaluation — результат оценки права на бонус.
type Evaluation struct {
	Eligible     bool          // Можно ли клеймить сейчас
	ClaimedToday bool          // Уже клеймил в этот UTC-день
	NextDay      int           // День стрика, который будет засчитан при клейме
	NextReward   int64         // Награда за этот день
	UntilNext    time.Duration // Сколько ждать до следующего клейма (0, если можно сейчас)
}

// Evaluate определяет право на бонус по UTC-календарю.
//
// Машина состояний:
//   - никогда не клеймил           → можно, день 1
//   - последний клейм сегодня      → нельзя, ждать до полуночи UTC
//   - последний клейм вчера        → можно, день min(прошлый+1, 7)
//   - последний клейм раньше вчера → стрик сломан, можно, день 1
//
// День клейма НИКОГДА не берётся у клиента: только отсюда.
func Evaluate(st State, now time.Time) Evaluation {
	if st.LastClaimedAt == nil {
		return Evaluation{Eligible: true, NextDay: 1, NextReward: Reward(1)}
	}

	today := common.DateUTC(now)
	yesterday := today.AddDate(0, 0, -1)
	lastDay := common.DateUTC(*st.LastClaimedAt)

	switch {
	case lastDay.Equal(today):
		// Уже получал сегодня
		return Evaluation{
			ClaimedToday: true,
			NextDay:      st.StreakDay,
			NextReward:   Reward(nextStreakDay(st.StreakDay)),
			UntilNext:    common.StartOfTomorrowUTC(now).Sub(now),
		}
	case lastDay.Equal(yesterday):
		// Стрик продолжается
		day := nextStreakDay(st.StreakDay)
		return Evaluation{Eligible: true, NextDay: day, NextReward: Reward(day)}
	default:
		// Пропустил день — стрик сломан
		return Evaluation{Eligible: true, NextDay: 1, NextReward: Reward(1)}
	}
}

// nextStreakDay — следующий день стрика с потолком 7.
func nextStreakDay(prev int) int {
	day := prev + 1
	if day < 1 {
		day = 1
	}
	if day > MaxStreakDay {
		day = MaxStreakDay
	}
	return day
}
