// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отдавать клиенту понятные ответы, не раскрывая внутренностей.
package common

import "errors"

// Ошибки леджера (балансы, транзакции)
var (
	// ErrUserNotFound — пользователь не найден в базе; не ретраится
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrInsufficientFunds — недостаточно монет на счёте
	ErrInsufficientFunds = errors.New("недостаточно монет на счёте")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrDecrypt — не удалось расшифровать данные.
	// Означает повреждённую запись или неверный ключ. ФАТАЛЬНО для операции:
	// подменять баланс нулём при такой ошибке ЗАПРЕЩЕНО.
	ErrDecrypt = errors.New("не удалось расшифровать данные")
)

// Ошибки ежедневного бонуса
var (
	// ErrAlreadyClaimed — бонус за сегодня уже получен
	ErrAlreadyClaimed = errors.New("бонус за сегодня уже получен")
)

// Ошибки заказов
var (
	// ErrOrderCodeExhausted — не удалось подобрать уникальный код заказа
	// за отведённое число попыток
	ErrOrderCodeExhausted = errors.New("не удалось сгенерировать уникальный код заказа")
)

// Ошибки топапов и вебхуков
var (
	// ErrInvalidSignature — подпись уведомления платёжного провайдера не сошлась
	ErrInvalidSignature = errors.New("неверная подпись уведомления")
	// ErrTopupNotFound — топап с таким order_id не найден (чужое уведомление)
	ErrTopupNotFound = errors.New("топап не найден")
)
