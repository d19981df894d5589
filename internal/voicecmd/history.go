package voicecmd

// historyCapacity bounds the command history; the oldest entry is evicted
// once the ring is full.
const historyCapacity = 100

type history struct {
	buf   []Command
	start int
	n     int
}

func newHistory() *history {
	return &history{buf: make([]Command, historyCapacity)}
}

func (h *history) append(c Command) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = c
		h.n++
		return
	}
	h.buf[h.start] = c
	h.start = (h.start + 1) % len(h.buf)
}

// recent returns up to limit commands, oldest first. limit <= 0 means all.
func (h *history) recent(limit int) []Command {
	if limit <= 0 || limit > h.n {
		limit = h.n
	}
	out := make([]Command, 0, limit)
	for i := h.n - limit; i < h.n; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

func (h *history) clear() {
	h.start = 0
	h.n = 0
}

func (h *history) len() int { return h.n }
