package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"relay-gateway/relay/domain"
	"relay-gateway/relay/infra"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type offererFunc[T any] func(ctx context.Context, item T) (domain.Outcome, error)

func (f offererFunc[T]) Offer(ctx context.Context, item T) (domain.Outcome, error) {
	return f(ctx, item)
}

func returning(outcome domain.Outcome, err error) domain.Offerer[string] {
	return offererFunc[string](func(context.Context, string) (domain.Outcome, error) {
		return outcome, err
	})
}

func TestSubmissionGateway_MapsOutcomes(t *testing.T) {
	testCases := []struct {
		name    string
		relay   domain.Offerer[string]
		status  domain.Status
		reason  string
		wantErr error
	}{
		{
			name:   "accepted",
			relay:  returning(domain.OutcomeAccepted, nil),
			status: domain.StatusOK,
			reason: domain.ReasonAccepted,
		},
		{
			name:   "rejected",
			relay:  returning(domain.OutcomeRejected, nil),
			status: domain.StatusOverload,
			reason: domain.ReasonQueueFull,
		},
		{
			name:    "closed",
			relay:   returning(domain.OutcomeClosed, nil),
			status:  domain.StatusInternalError,
			reason:  domain.ReasonClosed,
			wantErr: domain.ErrClosed,
		},
		{
			name:    "unexpected_outcome",
			relay:   returning(domain.Outcome(42), nil),
			status:  domain.StatusInternalError,
			reason:  domain.ReasonProtocolViolation,
			wantErr: domain.ErrProtocolViolation,
		},
		{
			name:    "offer_error",
			relay:   returning(0, errBoom),
			status:  domain.StatusInternalError,
			reason:  domain.ReasonOfferFailed,
			wantErr: errBoom,
		},
		{
			name:    "offer_aborted_by_ctx",
			relay:   returning(0, context.DeadlineExceeded),
			status:  domain.StatusInternalError,
			reason:  domain.ReasonTimeout,
			wantErr: context.DeadlineExceeded,
		},
		{
			name:    "no_relay",
			status:  domain.StatusInternalError,
			reason:  domain.ReasonRelayMissing,
			wantErr: domain.ErrRelayRequired,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := SubmissionGateway[string]{Relay: tc.relay}

			resp := g.Submit(context.Background(), "item")

			assert.Equal(t, tc.status, resp.Status)
			assert.Equal(t, tc.reason, resp.Reason)
			if tc.wantErr == nil {
				assert.NoError(t, resp.Err)
			} else {
				assert.ErrorIs(t, resp.Err, tc.wantErr)
			}
		})
	}
}

var errBoom = errors.New("boom")

func TestSubmissionGateway_ClosedIsDistinctFromRejected(t *testing.T) {
	rejected := SubmissionGateway[string]{Relay: returning(domain.OutcomeRejected, nil)}.Submit(context.Background(), "a")
	closed := SubmissionGateway[string]{Relay: returning(domain.OutcomeClosed, nil)}.Submit(context.Background(), "a")

	assert.NotEqual(t, rejected.Status, closed.Status)
	assert.Equal(t, domain.OutcomeClosed, closed.Outcome)
}

func TestSubmissionGateway_TimeoutWhenRelayIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := offererFunc[string](func(context.Context, string) (domain.Outcome, error) {
		<-release
		return domain.OutcomeAccepted, nil
	})
	g := SubmissionGateway[string]{Relay: stuck, Timeout: 20 * time.Millisecond}

	start := time.Now()
	resp := g.Submit(context.Background(), "item")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.StatusInternalError, resp.Status)
	assert.Equal(t, domain.ReasonTimeout, resp.Reason)
	assert.ErrorIs(t, resp.Err, context.DeadlineExceeded)
}

func TestSubmissionGateway_CallerContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rel, err := infra.NewBoundedRelay[string](1)
	require.NoError(t, err)
	t.Cleanup(rel.Cancel)

	resp := SubmissionGateway[string]{Relay: rel}.Submit(ctx, "item")

	assert.Equal(t, 0, rel.Len())
	assert.Equal(t, domain.StatusInternalError, resp.Status)
	assert.Equal(t, domain.ReasonTimeout, resp.Reason)
	assert.ErrorIs(t, resp.Err, context.Canceled)
}

func TestSubmissionGateway_WithBoundedRelay(t *testing.T) {
	rel, err := infra.NewBoundedRelay[string](1)
	require.NoError(t, err)

	g := SubmissionGateway[string]{Relay: rel, Timeout: time.Second}
	ctx := context.Background()

	assert.Equal(t, domain.StatusOK, g.Submit(ctx, "a").Status)
	assert.Equal(t, domain.StatusOverload, g.Submit(ctx, "b").Status)

	rel.Cancel()
	resp := g.Submit(ctx, "c")
	assert.Equal(t, domain.StatusInternalError, resp.Status)
	assert.Equal(t, domain.ReasonClosed, resp.Reason)
}

func TestSubmissionGateway_RecordsStats(t *testing.T) {
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))
	g := SubmissionGateway[string]{Relay: returning(domain.OutcomeRejected, nil), Stats: stats}

	g.SubmitKey(context.Background(), "client-1", "a")
	g.SubmitKey(context.Background(), "client-1", "b")
	g.Submit(context.Background(), "c")

	assert.Equal(t, infra.Counters{Overload: 3}, stats.Total())
	assert.Equal(t, int64(3), stats.ByReason()[domain.ReasonQueueFull])
	assert.Equal(t, infra.Counters{Overload: 2}, stats.ByKey()["client-1"])
}

func TestSubmissionGateway_StatsSurviveExpiredContext(t *testing.T) {
	var got context.Context
	stats := statsFunc(func(ctx context.Context, _ domain.StatsEvent) error {
		got = ctx
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	SubmissionGateway[string]{Relay: returning(domain.OutcomeAccepted, nil), Stats: stats}.Submit(ctx, "a")

	require.NotNil(t, got)
	assert.NoError(t, got.Err())
}

type statsFunc func(ctx context.Context, ev domain.StatsEvent) error

func (f statsFunc) Record(ctx context.Context, ev domain.StatsEvent) error { return f(ctx, ev) }

func TestSubmissionGateway_LogsProtocolViolationAsDefect(t *testing.T) {
	logger := watermill.NewCaptureLogger()
	g := SubmissionGateway[string]{Relay: returning(domain.Outcome(99), nil), Logger: logger}

	resp := g.Submit(context.Background(), "a")
	require.Equal(t, domain.ReasonProtocolViolation, resp.Reason)

	errs := logger.Captured()[watermill.ErrorLogLevel]
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, domain.ErrProtocolViolation)
	assert.Equal(t, true, errs[0].Fields["defect"])
}
