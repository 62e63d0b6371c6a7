package infra

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"relay-gateway/relay/domain"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkItem struct {
	N int `json:"n"`
}

func TestWatermillSink_PublishesInOrder(t *testing.T) {
	const topic = "submissions"
	const total = 10

	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	messages, err := pubSub.Subscribe(context.Background(), topic)
	require.NoError(t, err)

	rel := mustRelay[sinkItem](t, 16)
	for i := 0; i < total; i++ {
		mustOffer(t, rel, sinkItem{N: i}, domain.OutcomeAccepted)
	}

	sink := NewWatermillSink[sinkItem](pubSub, topic, 4, nil)
	require.NoError(t, rel.Subscribe(sink))

	for i := 0; i < total; i++ {
		select {
		case msg := <-messages:
			var got sinkItem
			require.NoError(t, UnmarshalJSON(msg.Payload, &got))
			assert.Equal(t, i, got.N)
			assert.Equal(t, msg.UUID, msg.Metadata.Get(MetadataSubmissionID))
			msg.Ack()
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting message %d", i)
		}
	}

	require.Eventually(t, func() bool { return sink.Published() == total }, time.Second, 5*time.Millisecond)

	rel.Cancel()
	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatalf("sink never completed")
	}
	assert.NoError(t, sink.Err())
	assert.Zero(t, sink.Failed())
}

type flakyPublisher struct {
	mu    sync.Mutex
	calls int
	ids   []string
}

func (p *flakyPublisher) Publish(_ string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls%2 == 0 {
		return errors.New("broker unavailable")
	}
	for _, m := range msgs {
		p.ids = append(p.ids, m.UUID)
	}
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func TestWatermillSink_PublishFailureKeepsDemandFlowing(t *testing.T) {
	pub := &flakyPublisher{}
	rel := mustRelay[sinkItem](t, 8)
	sink := NewWatermillSink[sinkItem](pub, "t", 2, nil)
	require.NoError(t, rel.Subscribe(sink))

	for i := 0; i < 6; i++ {
		mustOffer(t, rel, sinkItem{N: i}, domain.OutcomeAccepted)
	}

	require.Eventually(t, func() bool {
		return sink.Published()+sink.Failed() == 6
	}, time.Second, 5*time.Millisecond, "published=%d failed=%d", sink.Published(), sink.Failed())
	assert.Equal(t, int64(3), sink.Published())
	assert.Equal(t, int64(3), sink.Failed())
	assert.Equal(t, 0, rel.Len())
}

func TestWatermillSink_ErrorTerminates(t *testing.T) {
	sink := NewWatermillSink[sinkItem](&flakyPublisher{}, "t", 1, nil)
	boom := errors.New("boom")

	sink.OnError(boom)
	sink.OnComplete()

	select {
	case <-sink.Done():
	default:
		t.Fatalf("expected sink done")
	}
	assert.ErrorIs(t, sink.Err(), boom)
}

func TestNewID_IsSortable(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		id := NewID()
		require.Len(t, id, 26, "id %s", strconv.Quote(id))
		require.Greater(t, id, prev)
		prev = id
	}
}
