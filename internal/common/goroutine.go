// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// PanicError wraps a recovered panic value so it can travel as an error.
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the service.
//
// Example:
//
//	common.SafeGo(logger, "notify", func() {
//	    notifier.NotifyHighScore(ctx, analysis)
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, name, r, stackOf())
			}
		}()

		fn()
	}()
}

// SafeGoWithContext is SafeGo that skips fn when ctx is already cancelled.
func SafeGoWithContext(ctx context.Context, logger arbor.ILogger, name string, fn func()) {
	SafeGo(logger, name, func() {
		select {
		case <-ctx.Done():
			if logger != nil {
				logger.Debug().Str("goroutine", name).Msg("Goroutine cancelled before start")
			}
			return
		default:
		}
		fn()
	})
}

// RunProtected calls fn and converts a panic into a *PanicError.
func RunProtected(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Name: name, Value: r, Stack: stackOf()}
		}
	}()
	return fn()
}

// Supervise runs fn in a goroutine and restarts it after a panic until ctx is done.
// A normal return ends supervision. done is closed when the goroutine exits.
func Supervise(ctx context.Context, logger arbor.ILogger, name string, restartDelay time.Duration, fn func(ctx context.Context)) (done <-chan struct{}) {
	atomic.AddInt64(&goroutineCounter, 1)
	ch := make(chan struct{})

	go func() {
		defer close(ch)
		for {
			err := RunProtected(name, func() error {
				fn(ctx)
				return nil
			})
			if err == nil {
				return
			}

			var stack string
			if pe, ok := err.(*PanicError); ok {
				stack = pe.Stack
			}
			logPanic(logger, name, err, stack)

			select {
			case <-ctx.Done():
				return
			case <-time.After(restartDelay):
			}
			if logger != nil {
				logger.Warn().Str("goroutine", name).Msg("Restarting supervised goroutine")
			}
		}
	}()

	return ch
}

func stackOf() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

func logPanic(logger arbor.ILogger, name string, value interface{}, stack string) {
	if logger == nil {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, value, stack)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", value)).
		Str("stack", stack).
		Msg("Recovered from panic in goroutine - continuing service operation")
}
