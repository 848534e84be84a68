package server

import "sync"

// HistoryLog is the ordered record of previously broadcast chat lines,
// excluding presence updates. It is replayed to clients on login and
// persisted across restarts. Append order matches the order in which the
// server decided to relay each line.
type HistoryLog struct {
	mu    sync.RWMutex
	lines []string
}

// NewHistoryLog builds a log seeded with previously persisted lines.
func NewHistoryLog(lines []string) *HistoryLog {
	return &HistoryLog{lines: lines}
}

// Append adds a broadcast line to the end of the log.
func (h *HistoryLog) Append(line string) {
	h.mu.Lock()
	h.lines = append(h.lines, line)
	h.mu.Unlock()
}

// All returns a snapshot of the log in append order.
func (h *HistoryLog) All() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]string, len(h.lines))
	copy(result, h.lines)
	return result
}

// Clear discards the whole log.
func (h *HistoryLog) Clear() {
	h.mu.Lock()
	h.lines = nil
	h.mu.Unlock()
}

// Len returns the number of recorded lines.
func (h *HistoryLog) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lines)
}
