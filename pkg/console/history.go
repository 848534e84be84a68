package console

// History is the command recall buffer behind the console's up/down line
// recall. Put resets the cursor; Prev walks backward from the most recent
// entry and Next walks forward. Both return ok=false at the respective end.
type History struct {
	entries []string
	current int
}

// NewHistory creates an empty recall buffer.
func NewHistory() *History {
	return &History{current: -1}
}

// Put appends an executed command and resets the recall cursor.
func (h *History) Put(cmd string) {
	h.entries = append(h.entries, cmd)
	h.current = -1
}

// Prev recalls the command before the one last shown.
func (h *History) Prev() (string, bool) {
	switch {
	case h.current == -1 && len(h.entries) > 0:
		h.current = len(h.entries) - 1
	case h.current > 0:
		h.current--
	default:
		return "", false
	}
	return h.entries[h.current], true
}

// Next recalls the command after the one last shown.
func (h *History) Next() (string, bool) {
	if h.current == -1 || h.current >= len(h.entries)-1 {
		return "", false
	}
	h.current++
	return h.entries[h.current], true
}

// Len returns the number of stored commands.
func (h *History) Len() int {
	return len(h.entries)
}
