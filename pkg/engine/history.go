package engine

import "github.com/rhuss/dialog/pkg/api"

// history is the committed conversation: an ordered sequence of
// user/assistant pairs, bounded to maxPairs. The seeded system prompt
// is pinned outside the bound. Intermediate tool messages never enter
// here; callers strip them before committing.
type history struct {
	system   *api.Message
	msgs     []api.Message
	maxPairs int
}

func newHistory(maxPairs int, systemPrompt string) *history {
	h := &history{maxPairs: maxPairs}
	if systemPrompt != "" {
		sys := api.SystemMessage(systemPrompt)
		h.system = &sys
	}
	return h
}

// messages returns the system prompt (if any) followed by a copy of
// the committed messages, oldest first.
func (h *history) messages() []api.Message {
	out := make([]api.Message, 0, len(h.msgs)+1)
	if h.system != nil {
		out = append(out, *h.system)
	}
	return append(out, h.msgs...)
}

// commit appends a turn's messages and trims to the retention bound,
// dropping the oldest pairs first and preserving relative order of the
// remainder.
func (h *history) commit(msgs ...api.Message) {
	h.msgs = append(h.msgs, msgs...)
	if limit := h.maxPairs * 2; len(h.msgs) > limit {
		h.msgs = append(h.msgs[:0:0], h.msgs[len(h.msgs)-limit:]...)
	}
}

// clear drops all committed pairs. The system prompt stays.
func (h *history) clear() {
	h.msgs = nil
}
