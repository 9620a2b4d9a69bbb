package streamflow

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// innerOf resolves a project() result into a *Stream: a Stream is used
// as-is, a single bare value is treated as a one-element stream, and a
// slice is flattened as its own finite stream — the Go stand-in for the
// "Stream | Promise | value | array" union the runtime this models allows.
func innerOf(v Value) *Stream {
	switch t := v.(type) {
	case *Stream:
		return t
	case []Value:
		return FromSlice("inner", t)
	default:
		return Of(t)
	}
}

// SwitchMap projects each upstream value to an inner stream via project,
// closing any still-active inner before subscribing to the new one. Only
// the currently active inner's emissions reach downstream; a stale inner's
// late emissions are silently discarded.
func SwitchMap(project func(Value) Value) Operator {
	return CreateOperator("switchMap", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)
		out := make(chan temporalMsg, 1)

		go func() {
			defer close(out)
			var mu sync.Mutex
			var innerCancel context.CancelFunc
			generation := 0
			var wg sync.WaitGroup

			defer func() {
				mu.Lock()
				if innerCancel != nil {
					innerCancel()
				}
				mu.Unlock()
				wg.Wait()
			}()

			for {
				v, done, err := source.Next(ctx)
				if err != nil {
					select {
					case out <- temporalMsg{err: WrapOperatorError(err, opIndex, "switchMap", "", false)}:
					case <-ctx.Done():
					}
					return
				}
				if done {
					mu.Lock()
					cur := innerCancel
					mu.Unlock()
					if cur == nil {
						select {
						case out <- temporalMsg{done: true}:
						case <-ctx.Done():
						}
						return
					}
					wg.Wait()
					select {
					case out <- temporalMsg{done: true}:
					case <-ctx.Done():
					}
					return
				}

				mu.Lock()
				if innerCancel != nil {
					innerCancel()
				}
				generation++
				myGen := generation
				innerCtx, cancelInner := context.WithCancel(ctx)
				innerCancel = cancelInner
				mu.Unlock()

				inner := innerOf(project(v))
				wg.Add(1)
				go func() {
					defer wg.Done()
					it := inner.Iterate(innerCtx)
					defer CloseIterator(it)
					for {
						iv, idone, ierr := it.Next(innerCtx)
						mu.Lock()
						stale := myGen != generation
						mu.Unlock()
						if stale {
							return
						}
						if ierr != nil {
							select {
							case out <- temporalMsg{err: WrapOperatorError(ierr, opIndex, "switchMap", "", false)}:
							case <-innerCtx.Done():
							}
							return
						}
						if idone {
							return
						}
						select {
						case out <- temporalMsg{v: iv}:
						case <-innerCtx.Done():
							return
						}
					}
				}()
			}
		}()

		return &temporalIterator{out: out, cancel: cancel, source: source}
	})
}

// MergeMap projects each upstream value to an inner stream via project,
// running all active inners concurrently; downstream sees an interleaving
// of their emissions in arrival order. Every emission after an inner's
// first is tagged KindExpand, carrying the outer value's id as its
// expansion base.
func MergeMap(project func(Value) Value) Operator {
	return CreateOperator("mergeMap", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)
		out := make(chan temporalMsg, 16)
		g, gctx := errgroup.WithContext(ctx)

		go func() {
			defer func() {
				_ = g.Wait()
				close(out)
			}()
			for {
				v, done, err := source.Next(gctx)
				if err != nil {
					select {
					case out <- temporalMsg{err: WrapOperatorError(err, opIndex, "mergeMap", "", false)}:
					case <-gctx.Done():
					}
					return
				}
				if done {
					return
				}

				outerID := valueIDFromSourceOrNew(source)
				projected := project(v)
				inner := innerOf(projected)

				g.Go(func() error {
					it := inner.Iterate(gctx)
					defer CloseIterator(it)
					idx := 0
					for {
						iv, idone, ierr := it.Next(gctx)
						if ierr != nil {
							select {
							case out <- temporalMsg{err: WrapOperatorError(ierr, opIndex, "mergeMap", outerID, true)}:
							case <-gctx.Done():
							}
							return ierr
						}
						if idone {
							return nil
						}
						tagged := iv
						if idx > 0 {
							tagged = SetValueMeta(iv, Meta{Kind: KindExpand, InputValueIDs: []string{outerID}}, opIndex, "mergeMap")
						}
						idx++
						select {
						case out <- temporalMsg{v: tagged}:
						case <-gctx.Done():
							return gctx.Err()
						}
					}
				})
			}
		}()

		return &temporalIterator{out: out, cancel: cancel, source: source}
	})
}

// ConcatMap projects each upstream value to an inner stream via project,
// running inners strictly sequentially: the next inner is not subscribed
// until the previous one fully drains. Adapted from the sequential-runner
// shape of the teacher's task queue, generalized to streams instead of
// worker tasks.
func ConcatMap(project func(Value) Value) Operator {
	return CreateOperator("concatMap", func(parent context.Context, source Iterator, opIndex int) Iterator {
		ctx, cancel := context.WithCancel(parent)
		out := make(chan temporalMsg, 1)

		go func() {
			defer close(out)
			for {
				v, done, err := source.Next(ctx)
				if err != nil {
					select {
					case out <- temporalMsg{err: WrapOperatorError(err, opIndex, "concatMap", "", false)}:
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

				inner := innerOf(project(v))
				it := inner.Iterate(ctx)
				for {
					iv, idone, ierr := it.Next(ctx)
					if ierr != nil {
						CloseIterator(it)
						select {
						case out <- temporalMsg{err: WrapOperatorError(ierr, opIndex, "concatMap", "", false)}:
						case <-ctx.Done():
						}
						return
					}
					if idone {
						break
					}
					select {
					case out <- temporalMsg{v: iv}:
					case <-ctx.Done():
						CloseIterator(it)
						return
					}
				}
				CloseIterator(it)
			}
		}()

		return &temporalIterator{out: out, cancel: cancel, source: source}
	})
}

func valueIDFromSourceOrNew(source Iterator) string {
	if m, ok := GetMeta(source); ok && m.ValueID != "" {
		return m.ValueID
	}
	return nextValueID()
}
