package streamflow

import (
	"strconv"
	"sync/atomic"
)

var valueIDCounter int64

// nextValueID mints a lightweight, process-local id for a value crossing an
// operator boundary. This is a plain sequence, not the tracer's
// collision-resistant shortid scheme (see streamflow/tracer), since meta
// tagging here never leaves the process.
func nextValueID() string {
	return "v" + strconv.FormatInt(atomic.AddInt64(&valueIDCounter, 1), 10)
}
