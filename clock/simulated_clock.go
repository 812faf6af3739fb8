// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clock

import (
	"sync"
	"time"
)

// afterRequest holds the information for a pending After call in SimulatedClock.
type afterRequest struct {
	targetTime time.Time
	ch         chan time.Time
}

// SimulatedClock is a clock that allows for manipulation of the time,
// which does not change unless AdvanceTime or SetTime is called.
// The zero value is a clock initialized to the zero time.
//
// bcache's periodic-flush goroutine consumes a Clock through After alone, so
// driving it deterministically in a test means advancing this clock past
// the configured flush interval and then confirming the ticker actually
// fired — FlushTicks counts exactly that, so a test can assert "the cache
// flushed once" instead of racing on when the background goroutine happens
// to observe the fired channel.
type SimulatedClock struct {
	mu         sync.RWMutex
	t          time.Time       // GUARDED_BY(mu)
	pending    []*afterRequest // GUARDED_BY(mu)
	flushTicks int             // GUARDED_BY(mu)
}

func NewSimulatedClock(startTime time.Time) *SimulatedClock {
	return &SimulatedClock{
		t:       startTime,
		pending: nil,
	}
}

func (sc *SimulatedClock) Now() time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	return sc.t
}

// SetTime sets the current time according to the clock.
// It also processes any pending After calls that should fire.
func (sc *SimulatedClock) SetTime(t time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.t = t
	sc.processPending()
}

// AdvanceTime advances the current time according to the clock by the supplied duration.
// It also processes any pending After calls that should fire.
func (sc *SimulatedClock) AdvanceTime(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.t = sc.t.Add(d)
	sc.processPending()
}

// After fires on the channel once the simulated clock reaches t+d, driven by
// SetTime/AdvanceTime rather than wall time. d <= 0 fires immediately,
// matching time.After.
func (sc *SimulatedClock) After(d time.Duration) <-chan time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	ch := make(chan time.Time, 1)
	effectiveTargetTime := sc.t.Add(d)

	if !effectiveTargetTime.After(sc.t) {
		ch <- sc.t
		sc.flushTicks++
		return ch
	}

	// Otherwise, schedule it.
	ar := &afterRequest{
		targetTime: effectiveTargetTime,
		ch:         ch,
	}
	sc.pending = append(sc.pending, ar)

	return ch
}

// processPending checks all pending After requests and fires those
// whose target time has been reached or passed by the current simulated time.
// This method must be called with sc.mu held.
func (sc *SimulatedClock) processPending() {
	var stillPending []*afterRequest

	for _, ar := range sc.pending {
		// If current time sc.t is not before the targetTime (i.e., sc.t >= ar.targetTime)
		if !sc.t.Before(ar.targetTime) {
			ar.ch <- ar.targetTime // Send the time it was scheduled to fire
			// Do not close the channel, to mimic time.After behavior
			sc.flushTicks++
		} else {
			stillPending = append(stillPending, ar)
		}
	}

	sc.pending = stillPending
}

// FlushTicks reports how many After calls have fired since this clock was
// created, counting both scheduled ones and those with d <= 0 that fire at
// once. internal/bcache's periodic-flush goroutine calls
// After once per cycle, so this doubles as a count of flush cycles the
// background goroutine has been woken for, letting a test assert an exact
// flush count instead of polling cache state under a timeout.
func (sc *SimulatedClock) FlushTicks() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	return sc.flushTicks
}
