// Package topup — signature.go: подлинность вебхука и маппинг статусов.
package topup

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// ValidSignature проверяет подпись уведомления Midtrans.
// Подпись = SHA512(order_id + status_code + gross_amount + serverKey).
// Несовпадение — чужое или подделанное уведомление: никаких изменений
// состояния, но провайдеру всё равно отвечаем 200.
func ValidSignature(n Notification, serverKey string) bool {
	payload := n.OrderID + n.StatusCode + n.GrossAmount + serverKey
	sum := sha512.Sum512([]byte(payload))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// MapStatus переводит статусы провайдера в наши.
//
// Таблица переходов:
//   capture + accept    → success
//   capture + challenge → challenge (ручная проверка на стороне провайдера)
//   settlement          → success
//   cancel/deny/expire  → failed
//   всё остальное       → pending (no-op)
func MapStatus(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "accept":
			return StatusSuccess
		case "challenge":
			return StatusChallenge
		}
		return StatusPending
	case "settlement":
		return StatusSuccess
	case "cancel", "deny", "expire":
		return StatusFailed
	default:
		return StatusPending
	}
}
