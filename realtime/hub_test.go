package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, topic Topic) *Client {
	return &Client{
		Hub:   hub,
		Send:  make(chan []byte, 16),
		Topic: topic,
	}
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case message := <-client.Send:
		var event Event
		require.NoError(t, json.Unmarshal(message, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubDeliversOnlyToTopicSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscriber := newTestClient(hub, TournamentTopic(1))
	bystander := newTestClient(hub, TournamentTopic(2))
	hub.Register <- subscriber
	hub.Register <- bystander

	hub.Publish(TournamentTopic(1), Event{
		Type:         EventQueueUpdated,
		Action:       QueueActionEnqueued,
		TournamentID: 1,
	})

	event := receive(t, subscriber)
	assert.Equal(t, EventQueueUpdated, event.Type)
	assert.Equal(t, QueueActionEnqueued, event.Action)
	assert.Equal(t, 1, event.TournamentID)
	assert.Empty(t, bystander.Send, "events must not leak across tournament topics")
}

func TestHubPreservesPublishOrder(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscriber := newTestClient(hub, TournamentTopic(1))
	hub.Register <- subscriber

	actions := []string{QueueActionMarkedReady, QueueActionSentToCourt, QueueActionPulled}
	for _, action := range actions {
		hub.Publish(TournamentTopic(1), Event{
			Type:         EventQueueUpdated,
			Action:       action,
			TournamentID: 1,
		})
	}

	for _, action := range actions {
		event := receive(t, subscriber)
		assert.Equal(t, action, event.Action, "a subscriber must see events in publish order")
	}
}

func TestHubDropsEventsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{Hub: hub, Send: make(chan []byte, 1), Topic: TournamentTopic(1)}
	probe := newTestClient(hub, TournamentTopic(1))
	hub.Register <- slow
	hub.Register <- probe

	// Второе событие не влезает в буфер и теряется: at-most-once без replay.
	hub.Publish(TournamentTopic(1), Event{Type: EventQueueUpdated, Action: QueueActionEnqueued, TournamentID: 1})
	hub.Publish(TournamentTopic(1), Event{Type: EventQueueUpdated, Action: QueueActionRemoved, TournamentID: 1})

	// Probe подтверждает, что цикл хаба обработал обе публикации до того,
	// как мы начнём читать из переполненного клиента.
	receive(t, probe)
	receive(t, probe)

	first := receive(t, slow)
	assert.Equal(t, QueueActionEnqueued, first.Action)

	select {
	case message := <-slow.Send:
		t.Fatalf("expected the overflow event to be dropped, got %s", message)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, TournamentTopic(1))
	hub.Register <- client
	hub.Unregister <- client

	select {
	case _, open := <-client.Send:
		assert.False(t, open, "unregister must close the send channel")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send channel to close")
	}

	// Публикация в опустевший топик никуда не падает.
	hub.Publish(TournamentTopic(1), Event{Type: EventQueueUpdated, TournamentID: 1})
}

func TestTournamentTopic(t *testing.T) {
	assert.Equal(t, Topic("tournament:42"), TournamentTopic(42))
	assert.NotEqual(t, TournamentTopic(1), TournamentTopic(2))
}
