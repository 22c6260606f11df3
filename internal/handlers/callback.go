package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/st4s1k/stas-gpt/internal/bot"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

const callbackMaxBodyBytes int64 = 1 << 20 // 1 MiB

// CallbackHandler receives community callback deliveries. The platform
// retries anything that is not answered "ok", so processing failures are
// logged and swallowed; only the confirmation handshake answers
// differently.
type CallbackHandler struct {
	logger           *slog.Logger
	bot              *bot.Service
	confirmationCode string
}

func NewCallbackHandler(log *slog.Logger, botService *bot.Service, confirmationCode string) *CallbackHandler {
	return &CallbackHandler{
		logger:           log.With(slog.String("handler", "callback")),
		bot:              botService,
		confirmationCode: confirmationCode,
	}
}

func (h *CallbackHandler) Register(e *echo.Echo) {
	e.POST("/callback", h.Handle)
}

func (h *CallbackHandler) Handle(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, callbackMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > callbackMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", callbackMaxBodyBytes))
	}

	var event vk.CallbackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn("callback payload is not valid JSON", slog.Any("error", err))
		return c.String(http.StatusOK, "ok")
	}

	switch event.Type {
	case vk.EventTypeConfirmation:
		return c.String(http.StatusOK, h.confirmationCode)
	case vk.EventTypeMessageNew:
		if event.Object.Message == nil {
			h.logger.Warn("message_new event without message")
			return c.String(http.StatusOK, "ok")
		}
		if err := h.bot.HandleMessage(c.Request().Context(), event.Object.Message); err != nil {
			h.logger.Error("message handling failed",
				slog.Int64("peer_id", event.Object.Message.PeerID),
				slog.Any("error", err),
			)
		}
		return c.String(http.StatusOK, "ok")
	default:
		return c.String(http.StatusOK, "ok")
	}
}
