// Package streamflow is a reactive dataflow runtime: streams, operators,
// subjects (plain, behavior, replay), a pooled-worker coroutine lease, and a
// value-level tracer consumed by out-of-process visualisers.
//
// A Stream is a named, restartable producer of values; operators wrap one
// Iterator to produce another, and Pipe composes them left to right,
// re-instantiating the whole chain for every subscription. Subjects push
// values into a shared buffer (see the buffer subpackage) to which each
// subscriber attaches as an independent reader.
package streamflow
