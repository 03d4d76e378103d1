// Package consumer empties carts when checkout completes. The checkout
// pipeline publishes one message per finished order; the cart is cleared
// asynchronously so a lost message only leaves a stale cart, never a lost
// order.
package consumer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/storefront/cart-service/internal/store"
)

// MessageReader is the slice of kafka.Reader this consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type CheckoutConsumer struct {
	carts  store.CartStore
	reader MessageReader
}

func New(carts store.CartStore, brokers ...string) *CheckoutConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "checkout-completed",
		GroupID:  "cart-service-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &CheckoutConsumer{carts: carts, reader: reader}
}

// NewWithReader wires an explicit reader; tests use it.
func NewWithReader(carts store.CartStore, reader MessageReader) *CheckoutConsumer {
	return &CheckoutConsumer{carts: carts, reader: reader}
}

func (c *CheckoutConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *CheckoutConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing checkout reader: %v", err)
	}
}

func (c *CheckoutConsumer) consumeOne(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("error reading checkout message: %v", err)
		}
		return
	}

	var payload struct {
		UserID int64 `json:"user_id"`
	}
	if errUnmarshal := json.Unmarshal(m.Value, &payload); errUnmarshal != nil {
		log.Printf("error parsing checkout message: %v", errUnmarshal)
		return
	}
	if payload.UserID <= 0 {
		log.Println("checkout message missing user_id")
		return
	}

	if _, errDelete := c.carts.Delete(ctx, payload.UserID); errDelete != nil {
		log.Printf("failed to clear cart after checkout for user %d: %v", payload.UserID, errDelete)
		return
	}
	log.Printf("cart cleared after checkout for user %d", payload.UserID)
}
