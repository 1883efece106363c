// Package mqtt пересылает события клиента Flipper в MQTT-брокер.
package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	MQTT "github.com/eclipse/paho.mqtt.golang"

	"fliptotp/internal/domain/models"
	"fliptotp/internal/domain/ports"
	"fliptotp/pkg/flipper"
)

const (
	defaultTopic      = "fliptotp/events"
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // мс
)

// publisher - часть MQTT.Client, которой пользуется мост.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
	Disconnect(quiesce uint)
}

// Bridge реализует ports.EventPublisher.
type Bridge struct {
	client publisher
	topic  string
	logger ports.Logger
}

// Dial подключается к брокеру из настроек и возвращает мост.
func Dial(ctx context.Context, cfg models.MQTTPreferences, logger ports.Logger) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("не задан адрес MQTT-брокера (mqtt.broker)")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("fliptotp_%d", time.Now().Unix())
	}

	opts := MQTT.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		logger.Warn("MQTT: соединение потеряно: %v", err)
	})

	client := MQTT.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("MQTT connection failed: %w", err)
	}
	logger.Info("MQTT: подключено к %s", cfg.Broker)

	return newBridge(client, cfg.Topic, logger), nil
}

func newBridge(client publisher, topic string, logger ports.Logger) *Bridge {
	if topic == "" {
		topic = defaultTopic
	}
	return &Bridge{client: client, topic: topic, logger: logger}
}

// Topic возвращает топик, в который публикуются события.
func (b *Bridge) Topic() string { return b.topic }

// Publish сериализует событие и отправляет его в "<topic>/<type>".
func (b *Bridge) Publish(ctx context.Context, ev flipper.Event) error {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	topic := b.topic + "/" + string(ev.Type)
	if err := wait(ctx, b.client.Publish(topic, 0, false, payload)); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	b.logger.Debug("MQTT: событие %s отправлено в %s", ev.Type, topic)
	return nil
}

// Close отключается от брокера.
func (b *Bridge) Close() error {
	b.client.Disconnect(disconnectQuiesce)
	b.logger.Info("MQTT: отключено")
	return nil
}

// Forward публикует события из канала до его закрытия или отмены контекста.
// Ошибки публикации логируются и не прерывают пересылку.
func Forward(ctx context.Context, events <-chan flipper.Event, pub ports.EventPublisher, logger ports.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := pub.Publish(ctx, ev); err != nil {
				logger.Error("MQTT: %v", err)
			}
		}
	}
}

// wait дожидается токена paho с учётом контекста.
func wait(ctx context.Context, token MQTT.Token) error {
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("истекло время ожидания ответа брокера")
	}
}

var _ ports.EventPublisher = (*Bridge)(nil)
