package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/usecase"
)

const (
	defaultExchange = "shop.events"

	rkLowStock = "stock.low"
	rkNewOrder = "order.created"
	rkAdmin    = "admin.alert"
)

// LowStockMsg and NewOrderMsg are the wire shapes the bot frontend consumes
// to render admin notifications. Free-text admin alerts ride AdminMsg.
type LowStockMsg struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

type NewOrderMsg struct {
	OrderID string `json:"orderId"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Total   string `json:"total"`
	Lines   int    `json:"lines"`
}

type AdminMsg struct {
	Text string `json:"text"`
}

// RabbitNotifier publishes engine events to a topic exchange. All three
// notification kinds are fire-and-forget from the engine's point of view;
// delivery to the chat is the frontend's problem.
type RabbitNotifier struct {
	ch       *amqp.Channel
	exchange string
}

// NewRabbitNotifier declares the exchange once at startup.
func NewRabbitNotifier(ch *amqp.Channel, exchange string) (*RabbitNotifier, error) {
	if exchange == "" {
		exchange = defaultExchange
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitNotifier{ch: ch, exchange: exchange}, nil
}

func (n *RabbitNotifier) publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if err := n.ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (n *RabbitNotifier) NotifyLowStock(ctx context.Context, productID string, stock int) error {
	return n.publish(ctx, rkLowStock, LowStockMsg{ProductID: productID, Stock: stock})
}

func (n *RabbitNotifier) NotifyNewOrder(ctx context.Context, o *domain.Order) error {
	return n.publish(ctx, rkNewOrder, NewOrderMsg{
		OrderID: o.ID,
		Name:    o.Name,
		Status:  string(o.Status),
		Total:   o.Total.StringFixed(2),
		Lines:   len(o.Lines),
	})
}

func (n *RabbitNotifier) NotifyAdmin(ctx context.Context, text string) error {
	return n.publish(ctx, rkAdmin, AdminMsg{Text: text})
}

var _ usecase.Notifier = (*RabbitNotifier)(nil)
