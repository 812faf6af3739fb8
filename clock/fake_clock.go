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

import "time"

// FakeClock fires After on a fixed real-time delay regardless of the
// requested duration, for tests that want to force the periodic-flush
// goroutine to wake without waiting out whatever interval the config asked
// for.
type FakeClock struct {
	WaitTime time.Duration
}

// Now uses real wall time; only After's delay is faked.
func (mc *FakeClock) Now() time.Time {
	return time.Now()
}

// After ignores the requested duration and fires after WaitTime instead.
func (mc *FakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time)
	go func() {
		time.Sleep(mc.WaitTime)
		ch <- time.Now()
	}()
	return ch
}
