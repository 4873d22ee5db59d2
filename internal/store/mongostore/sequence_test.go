package mongostore

import (
	"sync"
	"testing"
	"time"
)

func TestSequenceIncreasesWithinSameInstant(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seq := &sequence{now: func() time.Time { return fixed }}

	prev := seq.next()
	for i := 0; i < 100; i++ {
		v := seq.next()
		if v <= prev {
			t.Fatalf("next() = %d, want > %d", v, prev)
		}
		prev = v
	}
}

func TestSequenceSurvivesClockGoingBackwards(t *testing.T) {
	current := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seq := &sequence{now: func() time.Time { return current }}

	first := seq.next()
	current = current.Add(-time.Hour)
	if second := seq.next(); second <= first {
		t.Fatalf("next() after clock step back = %d, want > %d", second, first)
	}
}

func TestSequenceConcurrentValuesAreUnique(t *testing.T) {
	seq := &sequence{now: time.Now}

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := seq.next()
			mu.Lock()
			defer mu.Unlock()
			if seen[v] {
				t.Errorf("duplicate sequence value %d", v)
			}
			seen[v] = true
		}()
	}
	wg.Wait()
}
