// Package notify delivers order updates to a staff Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/services"
)

// messageSender abstracts the Telegram Bot API send call.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// chatResolver reports the chat the shop wants notified about orders.
type chatResolver interface {
	Get(ctx context.Context) (domain.AppConfig, error)
}

// TelegramNotifierDeps wires the Telegram order notifier.
type TelegramNotifierDeps struct {
	Sender messageSender
	Config chatResolver
	// DefaultChatID is used when the runtime config holds no notify chat.
	DefaultChatID int64
	Logger        func(ctx context.Context, msg string, fields map[string]any)
}

// TelegramNotifier sends order summaries to the configured staff chat.
type TelegramNotifier struct {
	sender        messageSender
	config        chatResolver
	defaultChatID int64
	logger        func(ctx context.Context, msg string, fields map[string]any)
}

// NewTelegramNotifier validates dependencies and returns a notifier.
func NewTelegramNotifier(deps TelegramNotifierDeps) (*TelegramNotifier, error) {
	if deps.Sender == nil {
		return nil, errors.New("notify: telegram sender is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &TelegramNotifier{
		sender:        deps.Sender,
		config:        deps.Config,
		defaultChatID: deps.DefaultChatID,
		logger:        logger,
	}, nil
}

// NotifyOrderCreated announces a freshly placed order.
func (n *TelegramNotifier) NotifyOrderCreated(ctx context.Context, order services.Order) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🌸 Новый заказ %s\n", order.Number)
	fmt.Fprintf(&b, "Клиент: %s, %s\n", order.Contact.Name, formatPhone(order.Contact.Phone))
	if order.DeliveryMethod == domain.DeliveryMethodPickup {
		b.WriteString("Самовывоз\n")
	} else {
		fmt.Fprintf(&b, "Доставка: %s\n", order.Contact.Address)
	}
	for _, line := range order.Lines {
		fmt.Fprintf(&b, "• %s ×%d — %s\n", line.FlowerName, line.Quantity, formatAmount(line.Subtotal, order.Currency))
	}
	if order.DeliveryFee > 0 {
		fmt.Fprintf(&b, "Доставка: %s\n", formatAmount(order.DeliveryFee, order.Currency))
	}
	fmt.Fprintf(&b, "Итого: %s", formatAmount(order.Total, order.Currency))
	if comment := strings.TrimSpace(order.Contact.Comment); comment != "" {
		fmt.Fprintf(&b, "\nКомментарий: %s", comment)
	}
	return n.send(ctx, b.String(), order.ID)
}

// NotifyOrderStatus announces an order status change.
func (n *TelegramNotifier) NotifyOrderStatus(ctx context.Context, order services.Order) error {
	text := fmt.Sprintf("Заказ %s: %s", order.Number, statusLabel(order.Status))
	return n.send(ctx, text, order.ID)
}

func (n *TelegramNotifier) send(ctx context.Context, text, orderID string) error {
	chatID := n.chatID(ctx)
	if chatID == 0 {
		n.logger(ctx, "notify.skipped", map[string]any{"orderId": orderID, "reason": "no chat configured"})
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("notify: send telegram message: %w", err)
	}
	n.logger(ctx, "notify.sent", map[string]any{"orderId": orderID, "chatId": chatID})
	return nil
}

func (n *TelegramNotifier) chatID(ctx context.Context) int64 {
	if n.config != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if cfg, err := n.config.Get(lookupCtx); err == nil && cfg.NotifyChat != 0 {
			return cfg.NotifyChat
		}
	}
	return n.defaultChatID
}

func statusLabel(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPending:
		return "ожидает подтверждения"
	case domain.OrderStatusConfirmed:
		return "подтверждён"
	case domain.OrderStatusDelivered:
		return "доставлен"
	case domain.OrderStatusCancelled:
		return "отменён"
	default:
		return string(status)
	}
}

func formatPhone(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return fmt.Sprintf("+7 (%s) %s-%s-%s", digits[1:4], digits[4:7], digits[7:9], digits[9:11])
}

func formatAmount(amount int64, currency string) string {
	if currency == "RUB" {
		return fmt.Sprintf("%d ₽", amount)
	}
	return fmt.Sprintf("%d %s", amount, currency)
}

var _ services.OrderNotifier = (*TelegramNotifier)(nil)
