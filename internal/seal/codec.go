// Package seal шифрует денежные значения перед записью в базу.
// Баланс пользователя хранится не числом, а AEAD-токеном: подмена или
// порча значения в таблице ломает аутентификацию и обнаруживается при чтении.
//
// Формат токена: base64(nonce):base64(ciphertext):base64(tag), AES-256-GCM.
// Nonce каждый раз свежий, поэтому два шифрования одного и того же числа
// дают несвязываемые токены.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"

	"socialites.app/coin-service/internal/common"
)

const gcmTagSize = 16

// Codec шифрует и расшифровывает значения монетной системы.
// Из одного мастер-ключа через HKDF выводятся два независимых подключа:
// для числовых значений (балансы, количества монет) и для статусов топапов.
type Codec struct {
	amounts  cipher.AEAD // подключ "amounts"
	statuses cipher.AEAD // подключ "statuses"
}

// New создаёт кодек из 32-байтового мастер-ключа.
// Ключ короче/длиннее 32 байт — ошибка конфигурации, не работаем.
func New(masterKey []byte) (*Codec, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("ключ шифрования должен быть 32 байта, получили %d", len(masterKey))
	}

	amounts, err := deriveAEAD(masterKey, "socialites/coin-amounts/v1")
	if err != nil {
		return nil, err
	}
	statuses, err := deriveAEAD(masterKey, "socialites/topup-status/v1")
	if err != nil {
		return nil, err
	}

	return &Codec{amounts: amounts, statuses: statuses}, nil
}

// deriveAEAD выводит подключ через HKDF-SHA256 и строит на нём AES-GCM.
// info-строка разделяет домены применения: токен баланса нельзя
// подложить в колонку статуса и наоборот.
func deriveAEAD(masterKey []byte, info string) (cipher.AEAD, error) {
	sub := make([]byte, 32)
	r := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	if _, err := io.ReadFull(r, sub); err != nil {
		return nil, fmt.Errorf("ошибка вывода подключа: %w", err)
	}

	block, err := aes.NewCipher(sub)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания шифра: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}
	return aead, nil
}

// EncryptInt шифрует целое число (баланс, количество монет).
func (c *Codec) EncryptInt(n int64) (string, error) {
	return encrypt(c.amounts, strconv.FormatInt(n, 10))
}

// DecryptInt расшифровывает токен с числом.
//
// Пустой токен означает «записи ещё не было» и даёт 0 — это свежий аккаунт.
// Любая другая проблема (битый формат, не сошёлся тег аутентификации,
// внутри не число) — common.ErrDecrypt. НИКОГДА не возвращаем 0 вместо
// ошибки: иначе порча строки в базе обнуляет баланс.
func (c *Codec) DecryptInt(token string) (int64, error) {
	if token == "" {
		return 0, nil
	}
	plain, err := decrypt(c.amounts, token)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(plain, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: внутри токена не число", common.ErrDecrypt)
	}
	return n, nil
}

// EncryptStatus шифрует строку статуса топапа.
func (c *Codec) EncryptStatus(status string) (string, error) {
	return encrypt(c.statuses, status)
}

// DecryptStatus расшифровывает токен статуса. Пустой токен → пустая строка.
func (c *Codec) DecryptStatus(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	return decrypt(c.statuses, token)
}

// encrypt собирает токен nonce:ciphertext:tag со свежим случайным nonce.
func encrypt(aead cipher.AEAD, plaintext string) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal возвращает ciphertext||tag — разделяем для формата токена
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	b64 := base64.StdEncoding
	return b64.EncodeToString(nonce) + ":" + b64.EncodeToString(ct) + ":" + b64.EncodeToString(tag), nil
}

// decrypt разбирает токен и проверяет тег аутентификации.
func decrypt(aead cipher.AEAD, token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: неверный формат токена", common.ErrDecrypt)
	}

	b64 := base64.StdEncoding
	nonce, err := b64.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: битый nonce", common.ErrDecrypt)
	}
	ct, err := b64.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: битый ciphertext", common.ErrDecrypt)
	}
	tag, err := b64.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: битый тег", common.ErrDecrypt)
	}
	if len(nonce) != aead.NonceSize() || len(tag) != gcmTagSize {
		return "", fmt.Errorf("%w: неверная длина nonce или тега", common.ErrDecrypt)
	}

	plain, err := aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: тег аутентификации не сошёлся", common.ErrDecrypt)
	}
	return string(plain), nil
}
