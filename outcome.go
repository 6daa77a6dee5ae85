// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package couchcall

import (
	"context"
	"errors"
	"time"
)

// Outcome is the result of one operation: either a value, or an error.
type Outcome[T any] struct {
	Value T
	// Elapsed is the time taken by the request, measured by the client.
	Elapsed time.Duration
	// Err is nil on success. Otherwise it is an [*Error].
	Err error
}

// OK reports whether the outcome is a success.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Error returns the failure as an *Error, or nil on success.
func (o Outcome[T]) Error() *Error {
	if o.Err == nil {
		return nil
	}
	var e *Error
	if errors.As(o.Err, &e) {
		return e
	}
	e, _ = convertError(o.Err).(*Error)
	return e
}

func run[T any](ctx context.Context, fn func(context.Context) (T, error)) Outcome[T] {
	start := time.Now()
	value, err := fn(ctx)
	return Outcome[T]{
		Value:   value,
		Elapsed: time.Since(start),
		Err:     convertError(err),
	}
}

// Go runs fn on a new goroutine. Exactly one Outcome is sent on the returned
// channel, which is then closed.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Outcome[T] {
	ch := make(chan Outcome[T], 1)
	go func() {
		defer close(ch)
		ch <- run(ctx, fn)
	}()
	return ch
}

// Handlers receive the outcome of an operation started with [Dispatch]. Any
// handler may be nil.
type Handlers[T any] struct {
	// Success is called with the result and the elapsed request time.
	Success func(value T, elapsed time.Duration)
	// Error is called with the failure. If nil, the failure is logged.
	Error func(*Error)
	// Complete is called after Success or Error.
	Complete func()
}

// Dispatch runs fn on a new goroutine, and calls exactly one of h.Success or
// h.Error, followed by h.Complete. The returned channel is closed once the
// handlers have returned.
//
// If the operation fails and h.Error is nil, the failure is written to the
// logger set with [OptionLogger] on c, or to the standard logger if c is nil
// or has no logger. It is not raised any further: Dispatch never panics on
// behalf of a missing handler, since the panic would be on a goroutine the
// caller cannot recover. Callers that must observe every failure should set
// h.Error, or use [Go] and inspect the [Outcome].
func Dispatch[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error), h Handlers[T]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if h.Complete != nil {
			defer h.Complete()
		}
		o := run(ctx, fn)
		if o.OK() {
			if h.Success != nil {
				h.Success(o.Value, o.Elapsed)
			}
			return
		}
		e := o.Error()
		if h.Error == nil {
			c.logf("couchcall: unhandled error: %d %s", e.Status, e)
			return
		}
		h.Error(e)
	}()
	return done
}
