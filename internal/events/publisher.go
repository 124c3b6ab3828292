package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	streamName     = "IMPORTS"
	subjectPrefix  = "import.product"
	publishTimeout = 10 * time.Second
)

// ImportEvent is the payload emitted on queue lifecycle transitions.
type ImportEvent struct {
	EventID           string    `json:"eventId"`
	EventType         string    `json:"eventType"`
	QueueItemID       string    `json:"queueItemId"`
	SupplierProductID string    `json:"supplierProductId"`
	CatalogProductID  string    `json:"catalogProductId,omitempty"`
	ProductName       string    `json:"productName,omitempty"`
	Status            string    `json:"status"`
	ReviewedBy        string    `json:"reviewedBy,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Publisher emits import lifecycle events over NATS JetStream. A nil
// Publisher is valid and drops every event, so messaging stays optional.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the imports stream exists.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("supplier-import-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		logger.WithError(err).Warn("Failed to ensure imports stream (may already exist)")
	}

	return &Publisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "import-events"),
	}, nil
}

// Close drains the NATS connection
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}

// PublishDiscovered emits import.product.discovered for a newly staged candidate.
func (p *Publisher) PublishDiscovered(ctx context.Context, queueItemID, supplierProductID, productName string) {
	p.publish(ctx, "discovered", &ImportEvent{
		QueueItemID:       queueItemID,
		SupplierProductID: supplierProductID,
		ProductName:       productName,
		Status:            "PENDING",
	})
}

// PublishApproved emits import.product.approved.
func (p *Publisher) PublishApproved(ctx context.Context, queueItemID, supplierProductID, reviewedBy string) {
	p.publish(ctx, "approved", &ImportEvent{
		QueueItemID:       queueItemID,
		SupplierProductID: supplierProductID,
		Status:            "APPROVED",
		ReviewedBy:        reviewedBy,
	})
}

// PublishRejected emits import.product.rejected.
func (p *Publisher) PublishRejected(ctx context.Context, queueItemID, supplierProductID, reviewedBy string) {
	p.publish(ctx, "rejected", &ImportEvent{
		QueueItemID:       queueItemID,
		SupplierProductID: supplierProductID,
		Status:            "REJECTED",
		ReviewedBy:        reviewedBy,
	})
}

// PublishImported emits import.product.imported with the catalog product id.
func (p *Publisher) PublishImported(ctx context.Context, queueItemID, supplierProductID, catalogProductID, productName string) {
	p.publish(ctx, "imported", &ImportEvent{
		QueueItemID:       queueItemID,
		SupplierProductID: supplierProductID,
		CatalogProductID:  catalogProductID,
		ProductName:       productName,
		Status:            "IMPORTED",
	})
}

// publish fills the envelope and sends asynchronously so a slow broker
// never blocks a queue transition.
func (p *Publisher) publish(ctx context.Context, eventType string, event *ImportEvent) {
	if p == nil || p.js == nil {
		return
	}

	event.EventID = uuid.New().String()
	event.EventType = subjectPrefix + "." + eventType
	event.Timestamp = time.Now().UTC()

	go func() {
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).Error("Failed to marshal import event")
			return
		}

		pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if _, err := p.js.Publish(event.EventType, payload, nats.Context(pubCtx)); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType":   event.EventType,
				"queueItemId": event.QueueItemID,
			}).WithError(err).Error("Failed to publish import event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType":   event.EventType,
			"queueItemId": event.QueueItemID,
		}).Debug("Import event published")
	}()
}
