package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus, err := NewBus()
	require.NoError(t, err)

	received := make(chan TestCompletedData, 1)
	SubscribeTyped(bus, TestCompleted, "test_handler", func(data TestCompletedData) error {
		received <- data
		return nil
	})

	go func() { _ = bus.Start(ctx) }()
	defer bus.Stop()
	<-bus.Running()

	err = bus.Publish(ctx, TestCompletedData{
		RunID:  "run-1",
		TestID: "test_1",
		Status: "passed",
	})
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.Equal(t, "test_1", data.TestID)
		assert.Equal(t, "passed", data.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not handled within timeout")
	}
}

func TestBusRejectsUnknownPayload(t *testing.T) {
	bus, err := NewBus()
	require.NoError(t, err)
	defer bus.Stop()

	err = bus.Publish(context.Background(), struct{ X int }{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event payload")
}

func TestTypeOfCoversAllEvents(t *testing.T) {
	assert.Equal(t, RunStarted, typeOf(RunStartedData{}))
	assert.Equal(t, TestStarted, typeOf(&TestStartedData{}))
	assert.Equal(t, TestLog, typeOf(TestLogData{}))
	assert.Equal(t, TestCompleted, typeOf(TestCompletedData{}))
	assert.Equal(t, RunCompleted, typeOf(&RunCompletedData{}))
}
