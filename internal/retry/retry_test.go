package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFatal     = errors.New("unauthorized")
	errTransient = errors.New("service unavailable")
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func testPolicy(s *recordingSleeper) Policy {
	return Policy{
		MaxAttempts:  4,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		Fatal:        Matching(errFatal),
		Sleep:        s.sleep,
	}
}

func TestDoFatalErrorIsNotRetried(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0

	_, err := Do(context.Background(), testPolicy(s), "op", func(context.Context) (string, error) {
		calls++
		return "", errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.delays)
}

func TestDoSucceedsOnLastAttempt(t *testing.T) {
	s := &recordingSleeper{}
	p := testPolicy(s)
	calls := 0

	got, err := Do(context.Background(), p, "op", func(context.Context) (int, error) {
		calls++
		if calls < p.MaxAttempts {
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, p.MaxAttempts, calls)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, s.delays)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0

	_, err := Do(context.Background(), testPolicy(s), "op", func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
	assert.Len(t, s.delays, 3)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	s := &recordingSleeper{}
	p := testPolicy(s)
	p.Retryable = Matching(errTransient)
	errOther := errors.New("bad request")
	calls := 0

	_, err := Do(context.Background(), p, "op", func(context.Context) (int, error) {
		calls++
		return 0, errOther
	})

	assert.ErrorIs(t, err, errOther)
	assert.Equal(t, 1, calls)
}

func TestDoWrappedFatalError(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0

	_, err := Do(context.Background(), testPolicy(s), "op", func(context.Context) (int, error) {
		calls++
		return 0, errors.Join(errors.New("call failed"), errFatal)
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialDelay: time.Hour, Multiplier: 2}
	calls := 0

	_, err := Do(ctx, p, "op", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesDeadlineFromCallee(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0

	got, err := Do(context.Background(), testPolicy(s), "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			callCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
			defer cancel()
			<-callCtx.Done()
			return "", fmt.Errorf("request failed: %w", callCtx.Err())
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Len(t, s.delays, 2)
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 3}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 9*time.Second, p.Delay(3))
}
