package streamflow

import (
	"context"
	"sync"
)

type combineMsg struct {
	v    Value
	err  error
	done bool
}

type bufferedItem struct {
	id    string
	v     Value
	stamp int64
}

// BufferUntil accumulates source values until notifier emits, then flushes
// the accumulation as one collapsed array output. When the notifier emits,
// every source value already queued on the operator's internal source
// channel is drained into the flush before it happens; the order between
// source and notifier is taken from channel arrival, and emission stamps
// are not compared.
func BufferUntil(notifier *Stream) Operator {
	return CreateOperator("bufferUntil", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)
		out := make(chan combineMsg, 1)
		sourceCh := make(chan combineMsg, 16)
		notifierCh := make(chan combineMsg, 16)

		go pumpIterator(ctx, source, sourceCh)
		notifierIt := notifier.Iterate(ctx)
		go pumpIterator(ctx, notifierIt, notifierCh)

		go func() {
			defer close(out)
			var buf []bufferedItem
			sourceDone, notifierDone := false, false

			flush := func() bool {
				if len(buf) == 0 {
					return true
				}
				vals := make([]Value, len(buf))
				ids := make([]string, len(buf))
				for i, it := range buf {
					vals[i], ids[i] = it.v, it.id
				}
				buf = nil
				select {
				case out <- combineMsg{v: SetValueMeta(vals, Meta{Kind: KindCollapse, InputValueIDs: ids}, opIndex, "bufferUntil")}:
					return true
				case <-ctx.Done():
					return false
				}
			}

			for !sourceDone {
				select {
				case <-ctx.Done():
					return
				case m := <-sourceCh:
					if m.err != nil {
						select {
						case out <- combineMsg{err: WrapOperatorError(m.err, opIndex, "bufferUntil", "", false)}:
						case <-ctx.Done():
						}
						return
					}
					if m.done {
						sourceDone = true
						break
					}
					id := nextValueID()
					buf = append(buf, bufferedItem{id: id, v: m.v, stamp: NextEmissionStamp()})
				case m := <-notifierCh:
					if notifierDone {
						continue
					}
					if m.err != nil || m.done {
						notifierDone = true
						continue
					}
					// drain any source events already queued up to now —
					// approximates the stamp-based catch-up rule using
					// channel arrival order, since sourceCh preserves the
					// source's own stamp order.
				drain:
					for {
						select {
						case sm := <-sourceCh:
							if sm.err != nil {
								select {
								case out <- combineMsg{err: WrapOperatorError(sm.err, opIndex, "bufferUntil", "", false)}:
								case <-ctx.Done():
								}
								return
							}
							if sm.done {
								sourceDone = true
								break drain
							}
							buf = append(buf, bufferedItem{id: nextValueID(), v: sm.v})
						default:
							break drain
						}
					}
					if !flush() {
						return
					}
				}
			}
			flush()
			select {
			case out <- combineMsg{done: true}:
			case <-ctx.Done():
			}
		}()

		return &temporalIterator{out: toTemporalChan(out), cancel: func() { cancel(); _ = CloseIterator(notifierIt) }, source: source}
	})
}

// pumpIterator drains it into ch until completion, error, or ctx
// cancellation.
func pumpIterator(ctx context.Context, it Iterator, ch chan<- combineMsg) {
	for {
		v, done, err := it.Next(ctx)
		msg := combineMsg{v: v, done: done, err: err}
		select {
		case ch <- msg:
		case <-ctx.Done():
			return
		}
		if done || err != nil {
			return
		}
	}
}

func toTemporalChan(in chan combineMsg) chan temporalMsg {
	out := make(chan temporalMsg, cap(in))
	go func() {
		defer close(out)
		for m := range in {
			out <- temporalMsg{v: m.v, err: m.err, done: m.done}
		}
	}()
	return out
}

// WithLatestFrom does not emit until every auxiliary stream has produced at
// least one value. Each source value is then emitted as []Value{source,
// latest1, latest2, ...}. An auxiliary error terminates the output.
func WithLatestFrom(others ...*Stream) Operator {
	return CreateOperator("withLatestFrom", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)

		var mu sync.Mutex
		latest := make([]Value, len(others))
		has := make([]bool, len(others))
		var failErr error

		var wg sync.WaitGroup
		for i, aux := range others {
			wg.Add(1)
			go func(i int, aux *Stream) {
				defer wg.Done()
				it := aux.Iterate(ctx)
				defer CloseIterator(it)
				for {
					v, done, err := it.Next(ctx)
					if err != nil {
						mu.Lock()
						if failErr == nil {
							failErr = CoerceError(err)
						}
						mu.Unlock()
						return
					}
					if done {
						return
					}
					mu.Lock()
					latest[i], has[i] = v, true
					mu.Unlock()
				}
			}(i, aux)
		}

		return &funcIterator{
			next: func(ctx context.Context) (Value, bool, error) {
				for {
					mu.Lock()
					if failErr != nil {
						err := failErr
						mu.Unlock()
						return nil, false, WrapOperatorError(err, opIndex, "withLatestFrom", "", false)
					}
					mu.Unlock()

					v, done, err := source.Next(ctx)
					if err != nil {
						return nil, false, WrapOperatorError(err, opIndex, "withLatestFrom", "", false)
					}
					if done {
						cancel()
						wg.Wait()
						return nil, true, nil
					}

					mu.Lock()
					ready := true
					for _, ok := range has {
						if !ok {
							ready = false
							break
						}
					}
					if !ready {
						mu.Unlock()
						continue
					}
					row := make([]Value, 0, len(latest)+1)
					row = append(row, v)
					row = append(row, latest...)
					mu.Unlock()
					return row, false, nil
				}
			},
			ret: func() error { cancel(); return CloseIterator(source) },
		}
	})
}

// SkipUntil drops source values until notifier emits once, then passes
// every subsequent source value through unchanged. The notifier
// subscription is torn down on its first emission, error, or completion.
func SkipUntil(notifier *Stream) Operator {
	return CreateOperator("skipUntil", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)

		var mu sync.Mutex
		open := false
		notifierIt := notifier.Iterate(ctx)

		go func() {
			defer CloseIterator(notifierIt)
			_, _, _ = notifierIt.Next(ctx)
			mu.Lock()
			open = true
			mu.Unlock()
		}()

		return &funcIterator{
			next: func(ctx context.Context) (Value, bool, error) {
				for {
					v, done, err := source.Next(ctx)
					if err != nil {
						return nil, false, WrapOperatorError(err, opIndex, "skipUntil", "", false)
					}
					if done {
						return nil, true, nil
					}
					mu.Lock()
					isOpen := open
					mu.Unlock()
					if isOpen {
						return v, false, nil
					}
				}
			},
			ret: func() error { cancel(); return CloseIterator(source) },
		}
	})
}
