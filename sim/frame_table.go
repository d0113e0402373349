package sim

import "fmt"

// DefaultFrameCount is the number of frames used when none is configured.
const DefaultFrameCount = 4

// FrameSlot is one physical frame and its access metadata.
type FrameSlot struct {
	Page        *Page `json:"page"`
	LoadTime    int64 `json:"loadTime"`
	LastAccess  int64 `json:"lastAccess"`
	AccessCount int64 `json:"accessCount"`
}

// FrameTable is a fixed-capacity array of frame slots.
// A page present in the table occupies exactly one slot.
type FrameTable struct {
	slots []FrameSlot
}

// NewFrameTable creates a table of frameCount empty slots.
// Non-positive counts fall back to DefaultFrameCount.
func NewFrameTable(frameCount int) *FrameTable {
	if frameCount <= 0 {
		frameCount = DefaultFrameCount
	}
	return &FrameTable{slots: make([]FrameSlot, frameCount)}
}

// Len returns the number of slots.
func (ft *FrameTable) Len() int { return len(ft.slots) }

// FindByPage returns the index of the slot holding p.
func (ft *FrameTable) FindByPage(p Page) (int, bool) {
	for i := range ft.slots {
		if ft.slots[i].Page != nil && *ft.slots[i].Page == p {
			return i, true
		}
	}
	return -1, false
}

// FirstEmpty returns the index of the first empty slot, if any.
func (ft *FrameTable) FirstEmpty() (int, bool) {
	for i := range ft.slots {
		if ft.slots[i].Page == nil {
			return i, true
		}
	}
	return -1, false
}

// Load overwrites slot i with page p loaded at time t.
func (ft *FrameTable) Load(i int, p Page, t int64) {
	page := p
	ft.slots[i] = FrameSlot{Page: &page, LoadTime: t, LastAccess: t, AccessCount: 1}
}

// Touch records a hit on slot i at time t.
func (ft *FrameTable) Touch(i int, t int64) {
	ft.slots[i].LastAccess = t
	ft.slots[i].AccessCount++
}

// Slot returns a copy of slot i.
func (ft *FrameTable) Slot(i int) FrameSlot {
	s := ft.slots[i]
	if s.Page != nil {
		p := *s.Page
		s.Page = &p
	}
	return s
}

// Snapshot returns a deep copy of every slot.
func (ft *FrameTable) Snapshot() []FrameSlot {
	out := make([]FrameSlot, len(ft.slots))
	for i := range ft.slots {
		out[i] = ft.Slot(i)
	}
	return out
}

// Pages returns the page held by each slot; nil entries are empty slots.
func (ft *FrameTable) Pages() []*Page {
	out := make([]*Page, len(ft.slots))
	for i := range ft.slots {
		if ft.slots[i].Page != nil {
			p := *ft.slots[i].Page
			out[i] = &p
		}
	}
	return out
}

// Validate checks that no page is held by two slots.
func (ft *FrameTable) Validate() error {
	seen := make(map[Page]int, len(ft.slots))
	for i := range ft.slots {
		if ft.slots[i].Page == nil {
			continue
		}
		p := *ft.slots[i].Page
		if j, dup := seen[p]; dup {
			return &Error{
				Kind: KindStateCorruption,
				Op:   "frame table",
				Err:  fmt.Errorf("page %s held by slots %d and %d", p, j, i),
			}
		}
		seen[p] = i
	}
	return nil
}
