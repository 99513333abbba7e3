package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSessionCreatesAndReuses(t *testing.T) {
	s := NewStore()

	err := s.WithSession("s1", func(rec *Record) error {
		rec.Escalated = true
		rec.LastUrgency = "emergency"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	err = s.WithSession("s1", func(rec *Record) error {
		assert.True(t, rec.Escalated)
		assert.Equal(t, "emergency", rec.LastUrgency)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestWithSessionPropagatesError(t *testing.T) {
	s := NewStore()
	want := fmt.Errorf("boom")
	err := s.WithSession("s1", func(rec *Record) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestHistoryCap(t *testing.T) {
	s := NewStore(WithHistoryCap(4))
	require.Equal(t, 4, s.HistoryCap())

	_ = s.WithSession("s1", func(rec *Record) error {
		for i := 0; i < 10; i++ {
			rec.Append(Turn{Role: "user", Content: fmt.Sprintf("m%d", i)}, s.HistoryCap())
		}
		h := rec.History()
		require.Len(t, h, 4)
		// Oldest evicted, newest kept in order
		assert.Equal(t, "m6", h[0].Content)
		assert.Equal(t, "m9", h[3].Content)
		return nil
	})
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewStore()
	_ = s.WithSession("s1", func(rec *Record) error {
		rec.Append(Turn{Role: "user", Content: "original"}, s.HistoryCap())
		h := rec.History()
		h[0].Content = "mutated"
		assert.Equal(t, "original", rec.History()[0].Content)
		return nil
	})
}

func TestReset(t *testing.T) {
	s := NewStore()
	_ = s.WithSession("s1", func(rec *Record) error {
		rec.Escalated = true
		return nil
	})

	assert.True(t, s.Reset("s1"))
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Reset("s1"), "second reset should report absence")

	// A new turn under the same id starts clean
	_ = s.WithSession("s1", func(rec *Record) error {
		assert.False(t, rec.Escalated)
		assert.Empty(t, rec.History())
		return nil
	})
}

func TestConcurrentTurnsSerializePerSession(t *testing.T) {
	s := NewStore(WithHistoryCap(200))
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.WithSession("shared", func(rec *Record) error {
				// Read-modify-write across the whole section; races would
				// lose appends.
				h := len(rec.History())
				rec.Append(Turn{Role: "user", Content: fmt.Sprintf("m%d", i)}, 200)
				if len(rec.History()) != h+1 {
					t.Error("lost update inside exclusive section")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	_ = s.WithSession("shared", func(rec *Record) error {
		assert.Len(t, rec.History(), n)
		return nil
	})
}

func TestConcurrentDistinctSessions(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			_ = s.WithSession(id, func(rec *Record) error {
				rec.LastUrgency = "self_care"
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, s.Len())
}

func TestSweep(t *testing.T) {
	s := NewStore(WithTTL(time.Minute))

	_ = s.WithSession("old", func(rec *Record) error { return nil })
	_ = s.WithSession("fresh", func(rec *Record) error { return nil })

	// Nothing idle long enough yet
	assert.Equal(t, 0, s.Sweep(time.Now()))
	assert.Equal(t, 2, s.Len())

	// Everything expires past the TTL
	assert.Equal(t, 2, s.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, s.Len())
}

func TestSweepDoesNotBlockOtherSessions(t *testing.T) {
	s := NewStore(WithTTL(time.Minute))

	inTurn := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithSession("busy", func(rec *Record) error {
			close(inTurn)
			<-release
			return nil
		})
	}()
	<-inTurn

	// A session with a turn in flight is not idle; Sweep must skip it
	// without waiting on its lock, or every other session stalls behind
	// the registry lock for the duration of the turn.
	sweepDone := make(chan int, 1)
	go func() { sweepDone <- s.Sweep(time.Now().Add(2 * time.Minute)) }()

	select {
	case removed := <-sweepDone:
		assert.Equal(t, 0, removed)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep blocked on an in-flight turn")
	}

	turnDone := make(chan struct{})
	go func() {
		_ = s.WithSession("other", func(rec *Record) error { return nil })
		close(turnDone)
	}()
	select {
	case <-turnDone:
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated session stalled while another session was mid-turn")
	}

	close(release)
	_ = s.WithSession("busy", func(rec *Record) error { return nil })
	assert.Equal(t, 2, s.Len())
}
