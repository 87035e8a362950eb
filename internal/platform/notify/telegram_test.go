package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/seva-flowers/api/internal/domain"
)

type stubSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (s *stubSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

type stubChatResolver struct {
	cfg domain.AppConfig
	err error
}

func (s *stubChatResolver) Get(context.Context) (domain.AppConfig, error) {
	return s.cfg, s.err
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:             "ord_123",
		Number:         "SF-2025-000042",
		UserID:         "usr_1",
		Status:         domain.OrderStatusPending,
		DeliveryMethod: domain.DeliveryMethodCourier,
		Contact: domain.OrderContact{
			Name:    "Анна",
			Phone:   "79123456789",
			Address: "ул. Ленина, 1",
			Comment: "позвонить заранее",
		},
		Lines: []domain.OrderLine{
			{FlowerID: "flw_1", FlowerName: "Пионы", UnitPrice: 1200, Quantity: 2, Subtotal: 2400},
		},
		Currency:    "RUB",
		ItemsTotal:  2400,
		DeliveryFee: 300,
		Total:       2700,
		CreatedAt:   time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
	}
}

func TestNotifyOrderCreatedSendsSummary(t *testing.T) {
	sender := &stubSender{}
	notifier, err := NewTelegramNotifier(TelegramNotifierDeps{
		Sender: sender,
		Config: &stubChatResolver{cfg: domain.AppConfig{NotifyChat: -100555}},
	})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	if err := notifier.NotifyOrderCreated(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("NotifyOrderCreated: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected MessageConfig, got %T", sender.sent[0])
	}
	if msg.ChatID != -100555 {
		t.Errorf("expected configured chat id, got %d", msg.ChatID)
	}
	for _, want := range []string{"SF-2025-000042", "+7 (912) 345-67-89", "ул. Ленина, 1", "Пионы ×2", "Итого: 2700 ₽", "позвонить заранее"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("message missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestNotifyOrderCreatedPickupOmitsAddress(t *testing.T) {
	sender := &stubSender{}
	notifier, err := NewTelegramNotifier(TelegramNotifierDeps{Sender: sender, DefaultChatID: 42})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	order := sampleOrder()
	order.DeliveryMethod = domain.DeliveryMethodPickup
	order.DeliveryFee = 0
	order.Total = 2400
	if err := notifier.NotifyOrderCreated(context.Background(), order); err != nil {
		t.Fatalf("NotifyOrderCreated: %v", err)
	}
	msg := sender.sent[0].(tgbotapi.MessageConfig)
	if msg.ChatID != 42 {
		t.Errorf("expected fallback chat id, got %d", msg.ChatID)
	}
	if !strings.Contains(msg.Text, "Самовывоз") {
		t.Errorf("expected pickup marker:\n%s", msg.Text)
	}
	if strings.Contains(msg.Text, "ул. Ленина") {
		t.Errorf("pickup message should not carry an address:\n%s", msg.Text)
	}
}

func TestNotifyOrderStatusUsesStatusLabel(t *testing.T) {
	sender := &stubSender{}
	notifier, err := NewTelegramNotifier(TelegramNotifierDeps{Sender: sender, DefaultChatID: 42})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	order := sampleOrder()
	order.Status = domain.OrderStatusConfirmed
	if err := notifier.NotifyOrderStatus(context.Background(), order); err != nil {
		t.Fatalf("NotifyOrderStatus: %v", err)
	}
	msg := sender.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "подтверждён") {
		t.Errorf("expected status label in %q", msg.Text)
	}
}

func TestNotifySkipsWhenNoChatConfigured(t *testing.T) {
	sender := &stubSender{err: errors.New("must not be called")}
	notifier, err := NewTelegramNotifier(TelegramNotifierDeps{
		Sender: sender,
		Config: &stubChatResolver{err: errors.New("unavailable")},
	})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	if err := notifier.NotifyOrderCreated(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}
}

func TestNewTelegramNotifierRequiresSender(t *testing.T) {
	if _, err := NewTelegramNotifier(TelegramNotifierDeps{}); err == nil {
		t.Fatal("expected error for missing sender")
	}
}
