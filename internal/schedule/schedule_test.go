package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func noop(context.Context, string) {}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(context.Background(), Specs{Daily: "0 1 * * *", Weekly: "0 1 * * 1"}, noop, noop, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())

	for _, next := range s.Next() {
		assert.Equal(t, 1, next.Hour())
		assert.Zero(t, next.Minute())
	}
}

func TestEmptySpecSkipsJob(t *testing.T) {
	s, err := New(context.Background(), Specs{Daily: "30 6 * * *"}, noop, noop, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())
}

func TestInvalidSpec(t *testing.T) {
	_, err := New(context.Background(), Specs{Daily: "every morning"}, noop, noop, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily")
}

func TestJobReceivesDateAndSurvivesPanic(t *testing.T) {
	dates := make(chan string, 4)
	daily := func(_ context.Context, date string) {
		dates <- date
		panic("boom")
	}

	s, err := New(context.Background(), Specs{}, nil, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.today = func() string { return "2026-03-02" }
	require.NoError(t, s.add(context.Background(), "daily", "@every 1s", daily))

	s.Start()
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case d := <-dates:
			assert.Equal(t, "2026-03-02", d)
		case <-time.After(5 * time.Second):
			t.Fatal("scheduled job did not run")
		}
	}
}
