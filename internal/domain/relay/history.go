package relay

import "github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"

// HistorySize is the number of envelopes the relay retains
const HistorySize = 1000

// history is a fixed-capacity ring of envelopes, oldest evicted first
type history struct {
	buf   []types.Envelope
	start int
	n     int
}

func newHistory(size int) *history {
	return &history{buf: make([]types.Envelope, size)}
}

func (h *history) push(env types.Envelope) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = env
		h.n++
		return
	}
	h.buf[h.start] = env
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) len() int {
	return h.n
}

// last returns up to limit most recent envelopes, oldest first. A
// non-positive limit returns everything.
func (h *history) last(limit int) []types.Envelope {
	if limit <= 0 || limit > h.n {
		limit = h.n
	}
	out := make([]types.Envelope, limit)
	skip := h.n - limit
	for i := range out {
		out[i] = h.buf[(h.start+skip+i)%len(h.buf)]
	}
	return out
}
