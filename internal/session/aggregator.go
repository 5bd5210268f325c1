package session

import "strings"

// aggregator owns the per-session ordered transcript. Chunk texts arrive in
// completion order; the transcript grows strictly in sequence order. Callers
// hold the session lock, so the aggregator itself is not synchronized.
type aggregator struct {
	nextSeq int
	parts   []string
	// pending holds transcribed text that arrived ahead of nextSeq.
	pending map[int]string
	// failed marks sequences that will never produce text, so the drain can
	// step over the gap instead of stalling behind it.
	failed map[int]struct{}
}

func newAggregator() *aggregator {
	return &aggregator{
		pending: make(map[int]string),
		failed:  make(map[int]struct{}),
	}
}

// Append merges one chunk's text. It returns the text newly appended to the
// transcript (empty when the chunk was buffered or stale) and the full
// transcript after the call.
func (a *aggregator) Append(seq int, text string) (appended, full string) {
	if seq < a.nextSeq {
		return "", a.Transcript()
	}
	if seq > a.nextSeq {
		if _, dup := a.pending[seq]; !dup {
			a.pending[seq] = text
		}
		appended = a.drain()
		return appended, a.Transcript()
	}
	before := len(a.parts)
	a.parts = append(a.parts, text)
	a.nextSeq++
	a.drain()
	return strings.Join(a.parts[before:], " "), a.Transcript()
}

// MarkFailed records that a sequence will never arrive. Buffered successors
// become contiguous and drain; their text is returned as newly appended.
func (a *aggregator) MarkFailed(seq int) (appended, full string) {
	if seq < a.nextSeq {
		return "", a.Transcript()
	}
	if seq > a.nextSeq {
		a.failed[seq] = struct{}{}
		return "", a.Transcript()
	}
	a.nextSeq++
	before := len(a.parts)
	a.drain()
	return strings.Join(a.parts[before:], " "), a.Transcript()
}

func (a *aggregator) drain() string {
	before := len(a.parts)
	for {
		if text, ok := a.pending[a.nextSeq]; ok {
			a.parts = append(a.parts, text)
			delete(a.pending, a.nextSeq)
			a.nextSeq++
			continue
		}
		if _, gone := a.failed[a.nextSeq]; gone {
			delete(a.failed, a.nextSeq)
			a.nextSeq++
			continue
		}
		return strings.Join(a.parts[before:], " ")
	}
}

func (a *aggregator) Transcript() string {
	return strings.Join(a.parts, " ")
}

func (a *aggregator) NextSequence() int {
	return a.nextSeq
}
