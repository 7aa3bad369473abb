// Package eventbus publishes alert messages to NATS.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kartick026/trafficloud/internal/models"
)

// Publisher publishes alert messages to NATS, one subject per channel.
type Publisher struct {
	conn     *nats.Conn
	subjects map[models.AlertChannel]string
}

// NewPublisher connects to NATS and maps each alert channel to its subject.
func NewPublisher(natsURL, highPrioritySubject, congestionSubject string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Alert publisher connected to NATS at %s", natsURL)

	return &Publisher{
		conn: conn,
		subjects: map[models.AlertChannel]string{
			models.ChannelHighPriority: highPrioritySubject,
			models.ChannelCongestion:   congestionSubject,
		},
	}, nil
}

// PublishAlert publishes the message to the subject for its channel.
func (p *Publisher) PublishAlert(alert models.AlertMessage) error {
	subject, ok := p.subjects[alert.Channel]
	if !ok {
		return fmt.Errorf("no subject mapped for alert channel %q", alert.Channel)
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}

	log.Printf("Published alert to event bus: [%s] %s", alert.Channel, alert.Message)

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		log.Println("Alert publisher disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
