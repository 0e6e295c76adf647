package cart

import "context"

// Slot is a single named durable slot holding the serialized cart lines.
// Load returns (nil, nil) when nothing is persisted yet.
type Slot interface {
	Load(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, lines []Line) error
	Clear(ctx context.Context) error
}

// MemorySlot keeps the serialized cart in process memory. Used by tests and
// for sessions that do not need to survive a restart.
type MemorySlot struct {
	lines []Line
	saved bool
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Load(ctx context.Context) ([]Line, error) {
	if !m.saved {
		return nil, nil
	}
	out := make([]Line, len(m.lines))
	copy(out, m.lines)
	return out, nil
}

func (m *MemorySlot) Save(ctx context.Context, lines []Line) error {
	m.lines = make([]Line, len(lines))
	copy(m.lines, lines)
	m.saved = true
	return nil
}

func (m *MemorySlot) Clear(ctx context.Context) error {
	m.lines = nil
	m.saved = false
	return nil
}
