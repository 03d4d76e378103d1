package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/cart-service/internal/domain"
)

type fakeReader struct {
	messages chan kafka.Message
	closed   bool
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{messages: make(chan kafka.Message, len(values))}
	for _, v := range values {
		r.messages <- kafka.Message{Value: []byte(v)}
	}
	return r
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type recordingStore struct {
	mu      sync.Mutex
	carts   map[int64]*domain.Cart
	deletes []int64
}

func newRecordingStore() *recordingStore {
	return &recordingStore{carts: make(map[int64]*domain.Cart)}
}

func (s *recordingStore) Load(_ context.Context, userID int64) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok := s.carts[userID]; ok {
		return cart.Clone(), nil
	}
	return domain.NewCart(userID), nil
}

func (s *recordingStore) Save(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.UserID] = cart.Clone()
	return nil
}

func (s *recordingStore) Delete(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, userID)
	_, existed := s.carts[userID]
	delete(s.carts, userID)
	return existed, nil
}

func (s *recordingStore) All(context.Context) ([]*domain.Cart, error) {
	return nil, nil
}

func (s *recordingStore) deleted() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.deletes...)
}

func TestConsumeOne_ClearsCart(t *testing.T) {
	st := newRecordingStore()
	require.NoError(t, st.Save(context.Background(), domain.NewCart(7)))

	c := NewWithReader(st, newFakeReader(`{"user_id": 7}`))
	c.consumeOne(context.Background())

	assert.Equal(t, []int64{7}, st.deleted())
}

func TestConsumeOne_IgnoresMalformedPayload(t *testing.T) {
	st := newRecordingStore()

	c := NewWithReader(st, newFakeReader(`{not json`))
	c.consumeOne(context.Background())

	assert.Empty(t, st.deleted())
}

func TestConsumeOne_IgnoresMissingUserID(t *testing.T) {
	st := newRecordingStore()

	c := NewWithReader(st, newFakeReader(`{"order_id": 9}`))
	c.consumeOne(context.Background())

	assert.Empty(t, st.deleted())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	st := newRecordingStore()
	reader := newFakeReader(`{"user_id": 1}`, `{"user_id": 2}`)
	c := NewWithReader(st, reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(st.deleted()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func TestClose(t *testing.T) {
	reader := newFakeReader()
	c := NewWithReader(newRecordingStore(), reader)
	c.Close()
	assert.True(t, reader.closed)
}
