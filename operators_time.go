package streamflow

import (
	"context"
	"time"
)

type temporalMsg struct {
	v    Value
	err  error
	done bool
}

// temporalIterator is the shared shape of debounce/throttle/delay: a pump
// goroutine drains source and applies the timing policy, the returned
// Iterator's Next just reads the policy's output channel. Return cancels
// the pump and any pending timer.
type temporalIterator struct {
	out    chan temporalMsg
	cancel context.CancelFunc
	source Iterator
	metaBox
}

func (t *temporalIterator) Next(ctx context.Context) (Value, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case msg, ok := <-t.out:
		if !ok {
			return nil, true, nil
		}
		if msg.err != nil {
			return nil, false, msg.err
		}
		if msg.done {
			return nil, true, nil
		}
		return msg.v, false, nil
	}
}

func (t *temporalIterator) Return() error {
	t.cancel()
	return CloseIterator(t.source)
}

// Debounce builds an operator that coalesces rapid-fire values: a value is
// emitted only after d has elapsed with no further source value. The final
// pending value (if any) is flushed when source completes.
func Debounce(d time.Duration) Operator {
	return CreateOperator("debounce", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)
		out := make(chan temporalMsg, 1)

		go func() {
			defer close(out)
			var timer *time.Timer
			var timerC <-chan time.Time
			var pending Value
			hasPending := false
			pulls := make(chan temporalMsg, 1)

			pull := func() {
				v, done, err := source.Next(ctx)
				select {
				case pulls <- temporalMsg{v: v, done: done, err: err}:
				case <-ctx.Done():
				}
			}
			go pull()

			stopTimer := func() {
				if timer != nil {
					timer.Stop()
					timer, timerC = nil, nil
				}
			}
			defer stopTimer()

			for {
				select {
				case <-ctx.Done():
					return
				case <-timerC:
					if hasPending {
						select {
						case out <- temporalMsg{v: pending}:
						case <-ctx.Done():
							return
						}
						hasPending = false
					}
					timerC = nil
				case msg := <-pulls:
					if msg.err != nil {
						select {
						case out <- temporalMsg{err: WrapOperatorError(msg.err, opIndex, "debounce", "", false)}:
						case <-ctx.Done():
						}
						return
					}
					if msg.done {
						stopTimer()
						if hasPending {
							select {
							case out <- temporalMsg{v: pending}:
							case <-ctx.Done():
								return
							}
						}
						select {
						case out <- temporalMsg{done: true}:
						case <-ctx.Done():
						}
						return
					}
					pending, hasPending = msg.v, true
					stopTimer()
					timer = time.NewTimer(d)
					timerC = timer.C
					go pull()
				}
			}
		}()

		return &temporalIterator{out: out, cancel: cancel, source: source}
	})
}

// Throttle builds an operator that emits at most one value per window d:
// the first value in a window passes through immediately; subsequent
// values within the same window are dropped.
func Throttle(d time.Duration) Operator {
	return CreateOperator("throttle", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)
		out := make(chan temporalMsg, 1)

		go func() {
			defer close(out)
			var windowEnd time.Time
			for {
				v, done, err := source.Next(ctx)
				if err != nil {
					select {
					case out <- temporalMsg{err: WrapOperatorError(err, opIndex, "throttle", "", false)}:
					case <-ctx.Done():
					}
					return
				}
				if done {
					select {
					case out <- temporalMsg{done: true}:
					case <-ctx.Done():
					}
					return
				}
				now := time.Now()
				if now.After(windowEnd) {
					windowEnd = now.Add(d)
					select {
					case out <- temporalMsg{v: v}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()

		return &temporalIterator{out: out, cancel: cancel, source: source}
	})
}

// Delay builds an operator that shifts every emission (and completion) by a
// fixed duration d, preserving source order.
func Delay(d time.Duration) Operator {
	return CreateOperator("delay", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)
		out := make(chan temporalMsg, 1)

		go func() {
			defer close(out)
			for {
				v, done, err := source.Next(ctx)
				if err != nil {
					select {
					case <-time.After(d):
					case <-ctx.Done():
						return
					}
					select {
					case out <- temporalMsg{err: WrapOperatorError(err, opIndex, "delay", "", false)}:
					case <-ctx.Done():
					}
					return
				}
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return
				}
				if done {
					select {
					case out <- temporalMsg{done: true}:
					case <-ctx.Done():
					}
					return
				}
				select {
				case out <- temporalMsg{v: v}:
				case <-ctx.Done():
					return
				}
			}
		}()

		return &temporalIterator{out: out, cancel: cancel, source: source}
	})
}
