// Package events fans stock changes out to in-process subscribers. There is
// no message broker in this system; the Watermill GoChannel Pub/Sub gives
// watch subscriptions the same publish/subscribe shape without one.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/threadline/inventory/internal/catalog"
)

// StockChanged is published whenever a product's stock record materially
// changed, or unconditionally on a forced refresh.
type StockChanged struct {
	ProductID string              `json:"product_id"`
	Record    catalog.StockRecord `json:"record"`
	// Forced marks a visibility-driven refresh that must reach the
	// subscriber even if the record is byte-identical to the previous one.
	Forced     bool      `json:"forced,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

func stockTopic(productID string) string {
	return "stock.changed." + productID
}

// Bus wraps a GoChannel Pub/Sub with typed publish and subscribe.
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewBus creates an in-process event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger)),
	}
}

// PublishStockChanged publishes a stock change to every subscriber of the
// product's topic.
func (b *Bus) PublishStockChanged(ev StockChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal StockChanged: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(stockTopic(ev.ProductID), msg); err != nil {
		return fmt.Errorf("failed to publish StockChanged: %w", err)
	}
	return nil
}

// SubscribeStockChanged subscribes to one product's stock changes. The
// returned channel closes when ctx is cancelled.
func (b *Bus) SubscribeStockChanged(ctx context.Context, productID string) (<-chan StockChanged, error) {
	messages, err := b.pubSub.Subscribe(ctx, stockTopic(productID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to stock changes: %w", err)
	}

	out := make(chan StockChanged)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev StockChanged
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				slog.Error("Dropping malformed StockChanged payload", "err", err)
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
