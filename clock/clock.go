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

// Package clock provides a narrow, mockable time source so code that waits
// on wall-clock intervals (periodic cache flush, rate limiting) can be
// driven deterministically in tests.
package clock

import "time"

// Clock is the minimal time source consumed by the rest of the tree.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

var _ Clock = RealClock{}
var _ Clock = &SimulatedClock{}
var _ Clock = &FakeClock{}

// Tick is a captured time origin plus the clock it was drawn from. It plays
// the role of the "timer interface" external collaborator: Elapsed reports
// how much time has passed on that clock since the Tick was captured.
type Tick struct {
	clock Clock
	at    time.Time
}

// NewTick captures the current time as a tick origin.
func NewTick(c Clock) Tick {
	return Tick{clock: c, at: c.Now()}
}

// Elapsed returns how much time has passed since the tick was captured.
func (t Tick) Elapsed() time.Duration {
	return t.clock.Now().Sub(t.at)
}
