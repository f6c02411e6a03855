package store

import "sync/atomic"

// Handle holds the index currently served. Readers call Current once per
// request so a concurrent Swap never changes the index mid-query.
type Handle struct {
	current atomic.Pointer[ChunkIndex]
}

func NewHandle(idx *ChunkIndex) *Handle {
	h := &Handle{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Current returns the served index, or nil when none is loaded.
func (h *Handle) Current() *ChunkIndex {
	return h.current.Load()
}

// Swap replaces the served index and returns the previous one.
func (h *Handle) Swap(idx *ChunkIndex) *ChunkIndex {
	return h.current.Swap(idx)
}

// Reload loads the index at path and swaps it in. On error the current
// index keeps serving.
func (h *Handle) Reload(path, expectedModelID string) (*ChunkIndex, error) {
	idx, err := Load(path, expectedModelID)
	if err != nil {
		return nil, err
	}
	h.Swap(idx)
	return idx, nil
}
