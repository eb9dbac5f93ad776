//go:build ignore

// generate_key.go — утилита для генерации мастер-ключа шифрования балансов.
// Запуск: go run scripts/generate_key.go
//
// Результат вставьте в .env как COIN_ENC_KEY.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

func main() {
	// 32 байта — ровно под AES-256
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		fmt.Printf("Ошибка генерации ключа: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Добавьте в .env:")
	fmt.Printf("COIN_ENC_KEY=%s\n", base64.StdEncoding.EncodeToString(key))
}
