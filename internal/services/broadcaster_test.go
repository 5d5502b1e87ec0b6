package services_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

func TestEventBusRoutesByUser(t *testing.T) {
	log, _ := test.NewNullLogger()
	bus := services.NewEventBus(2, log)

	mine := bus.Subscribe(1)
	other := bus.Subscribe(2)
	assert.Equal(t, 1, bus.Subscribers(1))

	bus.Publish(models.Event{Type: models.EventBalanceChanged, UserID: 1})
	select {
	case ev := <-mine.C:
		assert.Equal(t, models.EventBalanceChanged, ev.Type)
	default:
		t.Fatal("expected an event")
	}
	assert.Len(t, other.C, 0)

	mine.Close()
	mine.Close()
	assert.Zero(t, bus.Subscribers(1))
	_, open := <-mine.C
	assert.False(t, open)
	other.Close()
}

func TestEventBusDropsWhenFull(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	bus := services.NewEventBus(1, log)
	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(models.Event{Type: models.EventRoundStarted, UserID: 1})
	bus.Publish(models.Event{Type: models.EventRoundResolved, UserID: 1})

	require.Len(t, sub.C, 1)
	assert.Equal(t, models.EventRoundStarted, (<-sub.C).Type)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Subscriber buffer full, dropping event", hook.LastEntry().Message)
}
