// Copyright 2025 Tom Barlow
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

// Package lazy provides lazily initialized containers.
package lazy

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// FailInit is a lazily initialized synchronized container whose
// initialization may be attempted as many times as needed to succeed,
// but which is immutable once an initialization succeeds.
//
// The zero value is an uninitialized FailInit ready for use.
// A FailInit must not be copied after first use.
type FailInit[T any] struct {
	done  atomic.Bool
	mu    sync.Mutex
	value T
}

// GetOrCreate returns the contained value, calling create to produce it if
// the FailInit is uninitialized. At most one create function runs at a
// time, and once one returns a nil error no further create functions are
// called. An error from create is returned as-is and leaves the FailInit
// uninitialized.
func (f *FailInit[T]) GetOrCreate(create func() (T, error)) (T, error) {
	if f.done.Load() {
		return f.value, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Another caller may have finished while we waited for the lock.
	if f.done.Load() {
		return f.value, nil
	}

	v, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	f.value = v
	f.done.Store(true)
	return v, nil
}

// Get returns the contained value and true if the FailInit has been
// initialized. If a creation is in flight, Get waits for it to finish.
func (f *FailInit[T]) Get() (T, bool) {
	if f.done.Load() {
		return f.value, true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done.Load() {
		return f.value, true
	}
	var zero T
	return zero, false
}

// String implements fmt.Stringer.
func (f *FailInit[T]) String() string {
	if v, ok := f.Get(); ok {
		return fmt.Sprintf("FailInit(%v)", v)
	}
	return "FailInit(<uninitialized>)"
}
