// Package events публикует события о версиях графика в RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RoutingKeySaved - ключ маршрутизации для сохранённых версий
const RoutingKeySaved = "schedule.version.saved"

// VersionSaved - событие после успешного сохранения версии
type VersionSaved struct {
	VersionID  uint      `json:"versionId"`
	Team       string    `json:"team"`
	ViewStart  string    `json:"viewStart"`
	ViewEnd    string    `json:"viewEnd"`
	Operator   string    `json:"operator"`
	Employees  int       `json:"employees"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher - topic exchange в RabbitMQ
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	timeout  time.Duration
	logger   logrus.FieldLogger
}

// Dial подключается к брокеру и объявляет exchange
func Dial(dsn, exchange string, timeout time.Duration, logger logrus.FieldLogger) (*Publisher, error) {
	conn, err := amqp.Dial(dsn)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.WithField("exchange", exchange).Info("RabbitMQ publisher initialized")
	return &Publisher{conn: conn, ch: ch, exchange: exchange, timeout: timeout, logger: logger}, nil
}

// VersionSaved публикует событие о сохранённой версии
func (p *Publisher) VersionSaved(ctx context.Context, ev VersionSaved) error {
	msg, err := savedMessage(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKeySaved, false, false, msg); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"version_id": ev.VersionID,
		"team":       ev.Team,
	}).Debug("Version saved event published")
	return nil
}

func savedMessage(ev VersionSaved) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    ev.OccurredAt,
		Type:         RoutingKeySaved,
		Body:         body,
	}, nil
}

func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
