package vkg

import vk "github.com/vulkan-go/vulkan"

// imageEntry is the per-image slot of a StateMap: a flat (mip * layer)
// grid of optional subresource states, mirroring
// etna::tracking::ImageState's std::vector<std::optional<...>> layout
// (ResourceTracking.hpp) rather than a nested map, so indexing stays
// O(1) and cache-friendly.
type imageEntry struct {
	nativeHandle vk.Image
	aspect       vk.ImageAspectFlags
	mipLevels    uint32
	arrayLayers  uint32
	cells        []*ImageSubresourceState
}

func newImageEntry(handle vk.Image, aspect vk.ImageAspectFlags, mips, layers uint32) *imageEntry {
	if mips == 0 {
		mips = 1
	}
	if layers == 0 {
		layers = 1
	}
	return &imageEntry{
		nativeHandle: handle,
		aspect:       aspect,
		mipLevels:    mips,
		arrayLayers:  layers,
		cells:        make([]*ImageSubresourceState, mips*layers),
	}
}

func (e *imageEntry) index(mip, layer uint32) int {
	idx := int(layer*e.mipLevels + mip)
	if idx < 0 || idx >= len(e.cells) {
		panicf("subresource (mip=%d, layer=%d) out of range for image with %d mips x %d layers", mip, layer, e.mipLevels, e.arrayLayers)
	}
	return idx
}

func (e *imageEntry) get(mip, layer uint32) *ImageSubresourceState {
	return e.cells[e.index(mip, layer)]
}

func (e *imageEntry) set(mip, layer uint32, s ImageSubresourceState) {
	cell := new(ImageSubresourceState)
	*cell = s
	e.cells[e.index(mip, layer)] = cell
}

// clone deep-copies the grid so two StateMaps can hold independent
// snapshots of the same image's tracked cells.
func (e *imageEntry) clone() *imageEntry {
	out := &imageEntry{
		nativeHandle: e.nativeHandle,
		aspect:       e.aspect,
		mipLevels:    e.mipLevels,
		arrayLayers:  e.arrayLayers,
		cells:        make([]*ImageSubresourceState, len(e.cells)),
	}
	for i, c := range e.cells {
		if c == nil {
			continue
		}
		cp := *c
		out.cells[i] = &cp
	}
	return out
}

// stateEntry is the tagged-union value stored per ResourceHandle: a
// StateMap entry is an image xor a buffer, never both, mirroring
// etna::tracking::ResContainer's std::variant<ImageState, BufferState>
// (ResourceTracking.hpp) as an explicit Go sum type instead of an
// interface, since there are exactly two cases and no third is ever
// expected.
type stateEntry struct {
	image  *imageEntry
	buffer *BufferState
}

func (e *stateEntry) isImage() bool { return e.image != nil }

// StateMap is a handle-keyed container of per-resource tracked state.
// PerCommandBufferTracker keeps three independent StateMaps (expected,
// current, requests); QueueTracker keeps one (currentStates).
type StateMap struct {
	entries map[ResourceHandle]*stateEntry
}

func newStateMap() *StateMap {
	return &StateMap{entries: make(map[ResourceHandle]*stateEntry)}
}

func (m *StateMap) len() int { return len(m.entries) }

func (m *StateMap) clear() {
	m.entries = make(map[ResourceHandle]*stateEntry)
}

// take empties m and returns its previous contents, mirroring
// CmdBufferTrackingState::takeStates.
func (m *StateMap) take() *StateMap {
	out := &StateMap{entries: m.entries}
	m.entries = make(map[ResourceHandle]*stateEntry)
	return out
}

func (m *StateMap) findImage(h ResourceHandle) (*imageEntry, bool) {
	e, ok := m.entries[h]
	if !ok || !e.isImage() {
		return nil, false
	}
	return e.image, true
}

func (m *StateMap) findBuffer(h ResourceHandle) (*BufferState, bool) {
	e, ok := m.entries[h]
	if !ok || e.isImage() {
		return nil, false
	}
	return e.buffer, true
}

// findOrAddImage returns the image entry for h, creating a fresh
// all-absent grid (shape copied from the image's own geometry) if none
// exists yet. Grounded on the ImageState overload of
// tracking::find_or_add (ResourceTracking.cpp).
func (m *StateMap) findOrAddImage(h ResourceHandle, handle vk.Image, aspect vk.ImageAspectFlags, mips, layers uint32) *imageEntry {
	if e, ok := m.entries[h]; ok {
		if !e.isImage() {
			panicf("resource handle %d used as both an image and a buffer", h)
		}
		return e.image
	}
	ie := newImageEntry(handle, aspect, mips, layers)
	m.entries[h] = &stateEntry{image: ie}
	return ie
}

// findOrAddBuffer returns the buffer entry for h, creating a fresh
// zero-value BufferState if none exists yet. Grounded on the
// BufferState overload of tracking::find_or_add (ResourceTracking.cpp).
func (m *StateMap) findOrAddBuffer(h ResourceHandle) *BufferState {
	if e, ok := m.entries[h]; ok {
		if e.isImage() {
			panicf("resource handle %d used as both an image and a buffer", h)
		}
		return e.buffer
	}
	bs := &BufferState{}
	m.entries[h] = &stateEntry{buffer: bs}
	return bs
}

func (m *StateMap) setImage(h ResourceHandle, ie *imageEntry) {
	m.entries[h] = &stateEntry{image: ie}
}

func (m *StateMap) setBuffer(h ResourceHandle, bs *BufferState) {
	m.entries[h] = &stateEntry{buffer: bs}
}

func (m *StateMap) delete_(h ResourceHandle) {
	delete(m.entries, h)
}
