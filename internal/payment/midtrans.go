// Package payment оборачивает SDK платёжного провайдера (Midtrans Snap).
// Наружу торчит только создание hosted-payment сессии: остальное
// (вебхуки, подписи) живёт в features/topup.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	log "github.com/sirupsen/logrus"
)

// Midtrans создаёт платёжные сессии Snap.
type Midtrans struct {
	client        snap.Client
	frontendURL   string // база для redirect-колбэков, без завершающего слэша
	expiryMinutes int64
}

// NewMidtrans настраивает клиент Snap.
func NewMidtrans(serverKey string, production bool, frontendURL string, expiryMinutes int) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	var client snap.Client
	client.New(serverKey, env)

	return &Midtrans{
		client:        client,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		expiryMinutes: int64(expiryMinutes),
	}
}

// Create открывает платёжную сессию и возвращает snap-токен.
// grossAmount — целое число в минимальных единицах валюты.
func (m *Midtrans) Create(ctx context.Context, orderRef string, grossAmount, coins int64) (string, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderRef,
			GrossAmt: grossAmount,
		},
		// item_details обязательны для консистентности данных на стороне провайдера
		Items: &[]midtrans.ItemDetails{{
			ID:           fmt.Sprintf("PKG-%d", coins),
			Price:        grossAmount,
			Qty:          1,
			Name:         fmt.Sprintf("%d Coins", coins),
			Category:     "Virtual Currency",
			MerchantName: "Socialites",
		}},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		Expiry: &snap.ExpiryDetails{
			Unit:     "minutes",
			Duration: m.expiryMinutes,
		},
		Callbacks: &snap.Callbacks{
			Finish: m.frontendURL + "/topup/success",
		},
	}

	resp, err := m.client.CreateTransaction(req)
	if err != nil {
		return "", fmt.Errorf("ошибка Snap API: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("Snap API не вернул токен сессии")
	}

	log.WithFields(log.Fields{
		"order_ref": orderRef,
		"gross":     grossAmount,
	}).Debug("Платёжная сессия создана")

	return resp.Token, nil
}
