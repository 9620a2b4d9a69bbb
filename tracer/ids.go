package tracer

import (
	"sync"

	"github.com/teris-io/shortid"
)

// idAlphabet mirrors the custom-alphabet approach the retrieved pack's
// cmn/cos.uuidABC takes (shortid requires exactly 64 distinct bytes — see
// that file's "len(uuidABC) > 0x3f" note); traces mint from a
// dash/underscore-free set so a valueId is safe to drop straight into a
// JSON string or a shell argument without quoting.
const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ.@"

var (
	idMu  sync.Mutex
	idGen *shortid.Shortid
)

func init() {
	idGen = shortid.MustNew(1, idAlphabet, 0)
}

// newID mints a collision-resistant trace/value/subscription id. Unlike
// the core package's nextValueID (a plain in-process counter, sufficient
// for meta tagging that never leaves the process), the tracer's ids must
// stay stable and non-colliding if trace export is ever fed from more
// than one process — shortid gives that without giving up a short,
// readable id.
func newID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return idGen.MustGenerate()
}
