// Package orders оформляет заказы услуг, оплачиваемые монетами.
// token.go — сервисные токены и человекочитаемые коды заказов.
package orders

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// ServiceToken считает HMAC-SHA256 над (orderID, userID, serviceName, amount).
// Фулфилмент проверяет токен своим экземпляром секрета и убеждается
// в подлинности заказа без похода в нашу базу.
func ServiceToken(secret []byte, orderID, userID, serviceName string, serviceAmount int) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s%s%s%d", orderID, userID, serviceName, serviceAmount)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyServiceToken проверяет токен в константное время.
func VerifyServiceToken(secret []byte, token, orderID, userID, serviceName string, serviceAmount int) bool {
	expected := ServiceToken(secret, orderID, userID, serviceName, serviceAmount)
	return hmac.Equal([]byte(expected), []byte(token))
}

// GenerateCode выдаёт код заказа вида SB-1234.
// Четыре случайные цифры дают слабую устойчивость к коллизиям — поэтому
// вставка идёт с проверкой занятости и ограниченным числом повторов.
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		// crypto/rand на живой системе не падает; паника здесь честнее,
		// чем предсказуемый код заказа
		panic(fmt.Sprintf("crypto/rand недоступен: %v", err))
	}
	return fmt.Sprintf("SB-%d", 1000+n.Int64())
}
