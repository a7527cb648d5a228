package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToMatchingTopic(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []Event

	unsub := b.Subscribe(TopicPTYOutput, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	defer unsub()

	b.Subscribe(TopicPTYExit, func(ev Event) {
		t.Errorf("unexpected delivery to pty-exit subscriber: %+v", ev)
	})

	b.Publish(Event{Topic: TopicPTYOutput, SessionID: "abc", Data: []byte("hello")})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "abc", got[0].SessionID)
}

func TestWildcardSubscriberReceivesEverything(t *testing.T) {
	b := New()
	var count int32
	var mu sync.Mutex

	b.Subscribe("", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(Event{Topic: TopicPTYOutput})
	b.Publish(Event{Topic: TopicSSHExit})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, time.Second, time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	var delivered bool
	var mu sync.Mutex

	unsub := b.Subscribe(TopicTabCreated, func(Event) {
		mu.Lock()
		delivered = true
		mu.Unlock()
	})
	unsub()

	b.Publish(Event{Topic: TopicTabCreated})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, delivered)
}

func TestPublishOrderedForSingleSubscriber(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []int

	unsub := b.Subscribe(TopicPTYOutput, func(ev Event) {
		mu.Lock()
		got = append(got, ev.Data.(int))
		mu.Unlock()
	})
	defer unsub()

	const n = 200
	for i := 0; i < n; i++ {
		b.Publish(Event{Topic: TopicPTYOutput, SessionID: "abc", Data: i})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == n
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		require.Equal(t, i, got[i], "event delivered out of order at position %d", i)
	}
}

func TestPanickingSubscriberDoesNotAffectOthers(t *testing.T) {
	b := New()
	var ok bool
	var mu sync.Mutex

	b.Subscribe(TopicPTYOutput, func(Event) {
		panic("boom")
	})
	b.Subscribe(TopicPTYOutput, func(Event) {
		mu.Lock()
		ok = true
		mu.Unlock()
	})

	b.Publish(Event{Topic: TopicPTYOutput})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ok
	}, time.Second, time.Millisecond)
}
