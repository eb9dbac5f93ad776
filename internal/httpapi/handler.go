// Package httpapi — тонкий HTTP-слой над сервисами монетной системы.
// Аутентификация живёт выше по стеку (session-gateway): сюда приходит
// уже проверенный пользователь в заголовке X-User-ID.
//
// Бизнес-отказы отдаются честными кодами и краткими сообщениями;
// ошибки хранилища и расшифровки — непрозрачным 500 без деталей.
package httpapi

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"socialites.app/coin-service/internal/common"
	"socialites.app/coin-service/internal/features/bonus"
	"socialites.app/coin-service/internal/features/ledger"
	"socialites.app/coin-service/internal/features/orders"
	"socialites.app/coin-service/internal/features/topup"
)

// Handler держит все сервисы, к которым ходят эндпоинты.
type Handler struct {
	engine    *ledger.Engine
	bonus     *bonus.Service
	orders    *orders.Service
	orderRepo *orders.Repository
	topups    *topup.Service
}

// NewHandler создаёт HTTP-обработчики.
func NewHandler(
	engine *ledger.Engine,
	bonusService *bonus.Service,
	orderService *orders.Service,
	orderRepo *orders.Repository,
	topupService *topup.Service,
) *Handler {
	return &Handler{
		engine:    engine,
		bonus:     bonusService,
		orders:    orderService,
		orderRepo: orderRepo,
		topups:    topupService,
	}
}

// Register вешает маршруты на приложение.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/health", h.Health)

	// Всё монетное — только с пользователем
	coins := api.Group("/", requireUser)
	coins.Get("/coins", h.GetCoins)
	coins.Get("/coins/history", h.GetHistory)
	coins.Get("/daily/status", h.GetDailyStatus)
	coins.Post("/daily/claim", h.ClaimDaily)
	coins.Post("/orders", h.CreateOrder)
	coins.Get("/orders", h.ListOrders)
	coins.Post("/topups", h.CreateTopup)
	coins.Get("/topups", h.ListTopups)

	// Вебхук провайдера — без пользователя и ВСЕГДА 200
	api.Post("/webhooks/midtrans", h.MidtransWebhook)
}

// requireUser достаёт пользователя, проставленного session-gateway.
func requireUser(c *fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	v, _ := c.Locals("user_id").(string)
	return v
}

// Health — проверка живости.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// GetCoins отдаёт баланс и блок ежедневного бонуса.
func (h *Handler) GetCoins(c *fiber.Ctx) error {
	uid := userID(c)

	balance, err := h.engine.Balance(c.Context(), uid)
	if err != nil {
		return businessError(c, err)
	}
	st, err := h.bonus.Status(c.Context(), uid)
	if err != nil {
		return businessError(c, err)
	}

	return c.JSON(fiber.Map{
		"coins": balance,
		"daily": fiber.Map{
			"claimedToday":       st.ClaimedToday,
			"streakDay":          st.StreakDay,
			"nextStreakDay":      st.NextDay,
			"nextReward":         st.NextReward,
			"timeUntilNextClaim": st.UntilNext.Milliseconds(),
			"canClaim":           st.Eligible,
		},
	})
}

// GetHistory отдаёт последние записи леджера.
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.engine.History(c.Context(), userID(c), c.QueryInt("limit", 20))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": entries})
}

// GetDailyStatus отдаёт статус стрика и таблицу наград.
func (h *Handler) GetDailyStatus(c *fiber.Ctx) error {
	st, err := h.bonus.Status(c.Context(), userID(c))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(fiber.Map{
		"streakDay":    st.NextDay,
		"claimedToday": st.ClaimedToday,
		"rewards":      st.Rewards,
	})
}

// ClaimDaily начисляет ежедневный бонус.
// Заголовок Idempotency-Key обязателен: ретраи клиента не должны
// начислять бонус дважды.
func (h *Handler) ClaimDaily(c *fiber.Ctx) error {
	key := c.Get("Idempotency-Key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Idempotency-Key header is required"})
	}

	res, err := h.bonus.Claim(c.Context(), userID(c), key)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(res)
}

type createOrderRequest struct {
	ServiceName   string `json:"service_name"`
	ServiceAmount int    `json:"service_amount"`
	CoinCost      int64  `json:"coin_cost"`
}

// CreateOrder оформляет заказ услуги за монеты.
func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	res, err := h.orders.Create(c.Context(), userID(c), req.ServiceName, req.ServiceAmount, req.CoinCost)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(res)
}

// ListOrders отдаёт историю заказов пользователя.
func (h *Handler) ListOrders(c *fiber.Ctx) error {
	list, err := h.orderRepo.ListByUser(c.Context(), userID(c), c.QueryInt("limit", 20))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(fiber.Map{"orders": list})
}

type createTopupRequest struct {
	Coins int64 `json:"coins"`
	Price int64 `json:"price"`
}

// CreateTopup открывает покупку монет через провайдера.
func (h *Handler) CreateTopup(c *fiber.Ctx) error {
	var req createTopupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	res, err := h.topups.Create(c.Context(), userID(c), req.Coins, req.Price)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(res)
}

// ListTopups отдаёт топапы пользователя.
func (h *Handler) ListTopups(c *fiber.Ctx) error {
	list, err := h.topups.ListByUser(c.Context(), userID(c), c.QueryInt("limit", 20))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(fiber.Map{"topups": list})
}

// MidtransWebhook принимает уведомление провайдера.
// Ответ ВСЕГДА 200: ретраи провайдера управляются нашей сверкой,
// а не HTTP-кодом. Внутренние ошибки — только в логи.
func (h *Handler) MidtransWebhook(c *fiber.Ctx) error {
	raw := c.Body()

	var n topup.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		log.WithError(err).Warn("Вебхук с нечитаемым телом")
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.topups.Reconcile(c.Context(), raw, n); err != nil {
		log.WithError(err).WithField("order_ref", n.OrderID).Error("Ошибка сверки вебхука")
	}
	return c.SendStatus(fiber.StatusOK)
}

// businessError переводит ошибки сервисов в HTTP-ответы.
func businessError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, common.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	case errors.Is(err, common.ErrInsufficientFunds):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient coins"})
	case errors.Is(err, common.ErrAlreadyClaimed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "already claimed today"})
	case errors.Is(err, common.ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	default:
		// Расшифровка, хранилище, провайдер: внутренности не раскрываем
		log.WithError(err).Error("Внутренняя ошибка операции")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "operation failed, try again"})
	}
}
