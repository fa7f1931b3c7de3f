package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/logger"
)

// fakeReader hands out queued messages, then blocks until the context ends
type fakeReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.messages) > 0 {
		m := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func message(t *testing.T, event any) kafka.Message {
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestPoller_DispatchesCartUpdates(t *testing.T) {
	reader := &fakeReader{
		errs: []error{errors.New("broker hiccup")},
		messages: []kafka.Message{
			{Value: []byte("{not json")},
			message(t, events.CartUpdated{OriginDevice: "dev-x"}),
			message(t, events.CartUpdated{UserID: "user-1", OriginDevice: "dev-1", ItemCount: 3}),
		},
	}

	var (
		mu  sync.Mutex
		got []events.CartUpdated
	)
	p := &Poller{
		reader: reader,
		handler: func(ctx context.Context, e events.CartUpdated) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, e)
		},
		log: logger.Discard(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	p.Close()
	assert.True(t, reader.closed)
	assert.Equal(t, "user-1", got[0].UserID)
	assert.Equal(t, "dev-1", got[0].OriginDevice)
	assert.Equal(t, 3, got[0].ItemCount)
}
