// Package common содержит общие утилиты, используемые во всём проекте.
// timeutil.go — работа с календарными днями. Все сутки считаем по UTC:
// стрик ежедневного бонуса живёт по UTC-дням, независимо от пояса клиента.
package common

import "time"

// DateUTC обнуляет время, оставляя только дату в UTC.
// Формат: 2006-01-02 00:00:00 +0000 UTC
func DateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDayUTC проверяет, что два момента приходятся на один UTC-день.
func SameDayUTC(a, b time.Time) bool {
	return DateUTC(a).Equal(DateUTC(b))
}

// StartOfTomorrowUTC возвращает полночь следующего UTC-дня.
// Используется для расчёта «сколько ждать до следующего бонуса».
func StartOfTomorrowUTC(now time.Time) time.Time {
	return DateUTC(now).AddDate(0, 0, 1)
}
