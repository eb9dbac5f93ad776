// Package bonus управляет ежедневным бонусом со стрик-механикой.
// rewards.go — таблица наград за дни стрика.
package bonus

// rewardTable — награда в монетах по дню стрика (индекс = день).
//
// Таблица:
//   День 1: 5 монет
//   День 2: 5 монет
//   День 3: 10 монет
//   День 4: 5 монет
//   День 5: 5 монет
//   День 6: 5 монет
//   День 7: 50 монет (джекпот недели)
//
// Стрик хранится в пределах 1–7: дальше седьмого дня не растёт,
// а ломается только пропуском дня.
var rewardTable = [...]int64{0, 5, 5, 10, 5, 5, 5, 50}

// MaxStreakDay — потолок стрика.
const MaxStreakDay = 7

// Reward возвращает награду за указанный день стрика.
// Значения вне диапазона 1–7 прижимаются к границам.
func Reward(day int) int64 {
	if day < 1 {
		day = 1
	}
	if day > MaxStreakDay {
		day = MaxStreakDay
	}
	return rewardTable[day]
}

// RewardTable возвращает всю таблицу наград для отображения клиенту.
func RewardTable() []DayReward {
	out := make([]DayReward, 0, MaxStreakDay)
	for day := 1; day <= MaxStreakDay; day++ {
		out = append(out, DayReward{Day: day, Amount: rewardTable[day]})
	}
	return out
}

// DayReward — строка таблицы наград.
type DayReward struct {
	Day    int   `json:"day"`
	Amount int64 `json:"amount"`
}
