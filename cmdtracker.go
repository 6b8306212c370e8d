package vkg

import vk "github.com/vulkan-go/vulkan"

// CmdBarrier batches the barriers produced by one FlushBarrier call.
//
// The classic (non-synchronization2) barrier API this package targets
// carries stage masks on the vkCmdPipelineBarrier call itself rather
// than on each individual vk.ImageMemoryBarrier/vk.MemoryBarrier, unlike
// etna::tracking::CmdBarrier (ResourceTracking.hpp) which can give every
// vk.ImageMemoryBarrier2 its own stage pair. CmdBarrier therefore widens
// the call-wide src/dst stage masks to the union of every barrier folded
// into it, which is always at least as conservative as the sync2
// per-barrier stages it is standing in for.
type CmdBarrier struct {
	srcStage      PipelineStageFlags
	dstStage      PipelineStageFlags
	hasMemory     bool
	memoryBarrier vk.MemoryBarrier
	imageBarriers []vk.ImageMemoryBarrier
}

func (b *CmdBarrier) empty() bool {
	return !b.hasMemory && len(b.imageBarriers) == 0
}

func (b *CmdBarrier) clear() {
	b.srcStage = 0
	b.dstStage = 0
	b.hasMemory = false
	b.memoryBarrier = vk.MemoryBarrier{}
	b.imageBarriers = nil
}

func (b *CmdBarrier) addStages(src, dst PipelineStageFlags) {
	b.srcStage |= src
	b.dstStage |= dst
}

func (b *CmdBarrier) addImageBarrier(barrier vk.ImageMemoryBarrier, src, dst PipelineStageFlags) {
	b.imageBarriers = append(b.imageBarriers, barrier)
	b.addStages(src, dst)
}

func (b *CmdBarrier) addMemoryBarrier(srcAccess, dstAccess AccessFlags, src, dst PipelineStageFlags) {
	if b.hasMemory {
		b.memoryBarrier.SrcAccessMask |= vk.AccessFlags(srcAccess)
		b.memoryBarrier.DstAccessMask |= vk.AccessFlags(dstAccess)
	} else {
		b.hasMemory = true
		b.memoryBarrier = vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(srcAccess),
			DstAccessMask: vk.AccessFlags(dstAccess),
		}
	}
	b.addStages(src, dst)
}

// Flush issues the accumulated barriers as a single vkCmdPipelineBarrier
// call and clears the batch. Grounded on etna::tracking::CmdBarrier::flush
// (ResourceTracking.cpp), adapted from vk::DependencyInfo/pipelineBarrier2
// to the classic vkCmdPipelineBarrier entry point.
func (b *CmdBarrier) Flush(cb vk.CommandBuffer) {
	if b.empty() {
		return
	}

	srcStage := b.srcStage
	dstStage := b.dstStage
	if srcStage == 0 {
		srcStage = PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	if dstStage == 0 {
		dstStage = PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}

	var memBarriers []vk.MemoryBarrier
	if b.hasMemory {
		memBarriers = []vk.MemoryBarrier{b.memoryBarrier}
	}

	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0,
		uint32(len(memBarriers)), memBarriers,
		0, nil,
		uint32(len(b.imageBarriers)), b.imageBarriers,
	)
	b.clear()
}

// PerCommandBufferTracker is the per-command-buffer subresource tracker:
// it accumulates state requests as commands are recorded, and at flush
// points converts the delta between an implied "current" state and the
// requested state into barriers. Grounded on
// etna::tracking::CmdBufferTrackingState (ResourceTracking.hpp/.cpp).
type PerCommandBufferTracker struct {
	expected *StateMap // assumptions validated against the queue at submit
	current  *StateMap // state as of the last flush, exported to the queue at submit
	requests *StateMap // accumulating since the last flush
}

// NewPerCommandBufferTracker returns an empty tracker, ready for a
// freshly-reset command buffer.
func NewPerCommandBufferTracker() *PerCommandBufferTracker {
	return &PerCommandBufferTracker{
		expected: newStateMap(),
		current:  newStateMap(),
		requests: newStateMap(),
	}
}

// ExpectBufferState overrides the assumed starting state of a buffer,
// bypassing whatever the queue tracker would otherwise supply. Grounded
// on CmdBufferTrackingState::expectState(Buffer) (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) ExpectBufferState(handle ResourceHandle, state BufferState) {
	cp := state
	t.expected.setBuffer(handle, &cp)
}

// ExpectImageState overrides the assumed starting state of one image
// subresource. Grounded on
// CmdBufferTrackingState::expectState(Image,...) (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) ExpectImageState(handle ResourceHandle, nativeHandle vk.Image, aspect vk.ImageAspectFlags, mips, layers, mip, layer uint32, state ImageSubresourceState) {
	ie := t.expected.findOrAddImage(handle, nativeHandle, aspect, mips, layers)
	ie.set(mip, layer, state)
}

// InitExpected merges an externally supplied snapshot (typically the
// queue tracker's currentStates) into the expected map; where the map
// already holds a value (including one set via Expect*), the snapshot's
// value replaces it. Grounded on
// CmdBufferTrackingState::initResourceStates(const ResContainer&)
// (ResourceTracking.cpp): if expected is empty, the snapshot replaces it
// wholesale; otherwise each incoming resource is merged in, images
// cell-by-cell (only overwriting cells the snapshot actually has a
// value for) and buffers wholesale.
func (t *PerCommandBufferTracker) InitExpected(snapshot *StateMap) {
	if t.expected.len() == 0 {
		for h, e := range snapshot.entries {
			if e.isImage() {
				t.expected.setImage(h, e.image.clone())
			} else {
				cp := *e.buffer
				t.expected.setBuffer(h, &cp)
			}
		}
		return
	}

	for h, e := range snapshot.entries {
		existing, ok := t.expected.entries[h]
		if !ok {
			if e.isImage() {
				t.expected.setImage(h, e.image.clone())
			} else {
				cp := *e.buffer
				t.expected.setBuffer(h, &cp)
			}
			continue
		}
		if e.isImage() {
			for i, c := range e.image.cells {
				if c != nil {
					cp := *c
					existing.image.cells[i] = &cp
				}
			}
		} else {
			cp := *e.buffer
			existing.buffer = &cp
		}
	}
}

// RequestBufferState accumulates a target state for a buffer, unioning
// with anything already requested this flush window. Grounded on
// CmdBufferTrackingState::requestState(Buffer) (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) RequestBufferState(handle ResourceHandle, state BufferState) {
	dst := t.requests.findOrAddBuffer(handle)
	dst.ActiveAccesses |= state.ActiveAccesses
	dst.ActiveStages |= state.ActiveStages
}

// RequestImageState accumulates a target state for one image
// subresource. Requesting two different layouts for the same
// subresource in the same flush window is a programmer error. Grounded
// on CmdBufferTrackingState::requestState(Image, mip, layer, ...)
// (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) RequestImageState(handle ResourceHandle, nativeHandle vk.Image, aspect vk.ImageAspectFlags, mips, layers, mip, layer uint32, state ImageSubresourceState) {
	ie := t.requests.findOrAddImage(handle, nativeHandle, aspect, mips, layers)
	dst := ie.get(mip, layer)
	if dst == nil {
		ie.set(mip, layer, state)
		return
	}
	if dst.Layout != state.Layout {
		panicf("conflicting image layouts requested for the same subresource in one barrier flush: %v vs %v", dst.Layout, state.Layout)
	}
	dst.ActiveAccesses |= state.ActiveAccesses
	dst.ActiveStages |= state.ActiveStages
}

// RequestImageRangeState requests the same target state across a
// contiguous mip/layer range. Grounded on
// CmdBufferTrackingState::requestState(Image, firstMip, mipCount, ...)
// (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) RequestImageRangeState(handle ResourceHandle, nativeHandle vk.Image, aspect vk.ImageAspectFlags, mips, layers, firstMip, mipCount, firstLayer, layerCount uint32, state ImageSubresourceState) {
	for mip := firstMip; mip < firstMip+mipCount; mip++ {
		for layer := firstLayer; layer < firstLayer+layerCount; layer++ {
			t.RequestImageState(handle, nativeHandle, aspect, mips, layers, mip, layer, state)
		}
	}
}

// acquireBufferSrc implements the three-case acquire contract: found in
// current -> return it; found only in expected -> copy into current and
// return; found in neither -> synthesize a fresh zero-value entry in
// both maps (the implicit "assume unused" promise, validated at
// submit). Grounded on
// CmdBufferTrackingState::acquireResource(HandleT) (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) acquireBufferSrc(handle ResourceHandle) *BufferState {
	if s, ok := t.current.findBuffer(handle); ok {
		return s
	}
	if s, ok := t.expected.findBuffer(handle); ok {
		cp := *s
		t.current.setBuffer(handle, &cp)
		return t.current.entries[handle].buffer
	}
	t.expected.setBuffer(handle, &BufferState{})
	fresh := &BufferState{}
	t.current.setBuffer(handle, fresh)
	return fresh
}

// acquireImageSrc is the image analogue of acquireBufferSrc, operating
// at subresource granularity. Grounded on
// CmdBufferTrackingState::acquireResource(HandleT, ImageState, mip,
// layer) (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) acquireImageSrc(handle ResourceHandle, req *imageEntry, mip, layer uint32) *ImageSubresourceState {
	if ie, ok := t.current.findImage(handle); ok {
		if c := ie.get(mip, layer); c != nil {
			return c
		}
	}

	if ie, ok := t.expected.findImage(handle); ok {
		if c := ie.get(mip, layer); c != nil {
			cur, curOk := t.current.findImage(handle)
			if !curOk {
				cur = ie.clone()
				t.current.setImage(handle, cur)
			}
			cp := *c
			cur.set(mip, layer, cp)
			return cur.get(mip, layer)
		}
	}

	// Neither map has this subresource: assume it is unused, but make
	// that assumption explicit and checkable at submit time.
	expIE := t.expected.findOrAddImage(handle, req.nativeHandle, req.aspect, req.mipLevels, req.arrayLayers)
	curIE := t.current.findOrAddImage(handle, req.nativeHandle, req.aspect, req.mipLevels, req.arrayLayers)
	fresh := ImageSubresourceState{Layout: defaultImageLayout}
	expIE.set(mip, layer, fresh)
	curIE.set(mip, layer, fresh)
	return curIE.get(mip, layer)
}

// genImageBarrier applies the barrier-generation policy table (layout
// change / write->write / write->read / read->write / read->read /
// first-use) to one subresource, mutating src to dst in place. Grounded
// on CmdBufferTrackingState::genBarrier(Image...) (ResourceTracking.cpp).
func genImageBarrier(img vk.Image, aspect vk.ImageAspectFlags, mip, layer uint32, src *ImageSubresourceState, dst ImageSubresourceState) (barrier vk.ImageMemoryBarrier, srcStage, dstStage PipelineStageFlags, ok bool) {
	rng := vk.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   mip,
		LevelCount:     1,
		BaseArrayLayer: layer,
		LayerCount:     1,
	}
	base := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcQueueFamilyIndex:  vk.QueueFamilyIgnored,
		DstQueueFamilyIndex:  vk.QueueFamilyIgnored,
		Image:                img,
		SubresourceRange:     rng,
	}

	if src.Layout != dst.Layout {
		barrier = base
		barrier.OldLayout = vk.ImageLayout(src.Layout)
		barrier.NewLayout = vk.ImageLayout(dst.Layout)
		barrier.SrcAccessMask = vk.AccessFlags(src.ActiveAccesses & writeAccessMask)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessMemoryReadBit) | vk.AccessFlags(vk.AccessMemoryWriteBit)
		srcStage = src.ActiveStages | PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = PipelineStageFlags(vk.PipelineStageAllCommandsBit)
		*src = dst
		return barrier, srcStage, dstStage, true
	}

	isSrcWrite := hasWriteAccess(src.ActiveAccesses)
	isSrcRead := hasReadAccess(src.ActiveAccesses)
	isDstWrite := hasWriteAccess(dst.ActiveAccesses)
	isDstRead := hasReadAccess(dst.ActiveAccesses)

	if isSrcWrite {
		barrier = base
		barrier.OldLayout = vk.ImageLayout(src.Layout)
		barrier.NewLayout = vk.ImageLayout(dst.Layout)
		barrier.SrcAccessMask = vk.AccessFlags(src.ActiveAccesses & writeAccessMask)
		srcStage = src.ActiveStages
		if isDstWrite {
			barrier.DstAccessMask = vk.AccessFlags(dst.ActiveAccesses)
			dstStage = dst.ActiveStages
		} else if isDstRead {
			barrier.DstAccessMask = vk.AccessFlags(vk.AccessMemoryReadBit) | vk.AccessFlags(vk.AccessMemoryWriteBit)
			dstStage = PipelineStageFlags(vk.PipelineStageAllCommandsBit)
		}
		*src = dst
		return barrier, srcStage, dstStage, true
	}

	if isSrcRead && isDstWrite {
		barrier = base
		barrier.OldLayout = vk.ImageLayout(src.Layout)
		barrier.NewLayout = vk.ImageLayout(dst.Layout)
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = 0
		srcStage = src.ActiveStages
		dstStage = dst.ActiveStages
		*src = dst
		return barrier, srcStage, dstStage, true
	}

	if isSrcRead && isDstRead {
		src.ActiveAccesses |= dst.ActiveAccesses
		src.ActiveStages |= dst.ActiveStages
		return vk.ImageMemoryBarrier{}, 0, 0, false
	}

	if src.used() {
		panicf("unknown resource access state for image subresource (mip=%d, layer=%d)", mip, layer)
	}
	*src = dst
	return vk.ImageMemoryBarrier{}, 0, 0, false
}

// genBufferBarrier is the buffer analogue of genImageBarrier: buffers
// only ever produce a (merged) global memory barrier, never an image
// layout transition. Grounded on
// CmdBufferTrackingState::genBarrier(Buffer...) (ResourceTracking.cpp).
func genBufferBarrier(src *BufferState, dst BufferState) (srcAccess, dstAccess AccessFlags, srcStage, dstStage PipelineStageFlags, ok bool) {
	isSrcWrite := hasWriteAccess(src.ActiveAccesses)
	isSrcRead := hasReadAccess(src.ActiveAccesses)
	isDstWrite := hasWriteAccess(dst.ActiveAccesses)
	isDstRead := hasReadAccess(dst.ActiveAccesses)

	if isSrcWrite {
		srcAccess = src.ActiveAccesses & writeAccessMask
		srcStage = src.ActiveStages
		if isDstWrite {
			dstAccess = dst.ActiveAccesses
			dstStage = dst.ActiveStages
		} else if isDstRead {
			dstAccess = AccessFlags(vk.AccessMemoryReadBit) | AccessFlags(vk.AccessMemoryWriteBit)
			dstStage = PipelineStageFlags(vk.PipelineStageAllCommandsBit)
		}
		*src = dst
		return srcAccess, dstAccess, srcStage, dstStage, true
	}

	if isSrcRead && isDstWrite {
		srcStage = src.ActiveStages
		dstStage = dst.ActiveStages
		*src = dst
		return 0, 0, srcStage, dstStage, true
	}

	if isSrcRead && isDstRead {
		src.ActiveAccesses |= dst.ActiveAccesses
		src.ActiveStages |= dst.ActiveStages
		return 0, 0, 0, 0, false
	}

	if src.used() {
		panicf("unknown resource access state for buffer")
	}
	*src = dst
	return 0, 0, 0, 0, false
}

// FlushBarrier drains every pending request into barrier, acquiring a
// source state for each touched resource on the fly. Grounded on
// CmdBufferTrackingState::flushBarrier (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) FlushBarrier(barrier *CmdBarrier) {
	for handle, entry := range t.requests.entries {
		if entry.isImage() {
			req := entry.image
			for layer := uint32(0); layer < req.arrayLayers; layer++ {
				for mip := uint32(0); mip < req.mipLevels; mip++ {
					dst := req.get(mip, layer)
					if dst == nil {
						continue
					}
					src := t.acquireImageSrc(handle, req, mip, layer)
					if b, srcStage, dstStage, ok := genImageBarrier(req.nativeHandle, req.aspect, mip, layer, src, *dst); ok {
						barrier.addImageBarrier(b, srcStage, dstStage)
					}
				}
			}
		} else {
			dst := entry.buffer
			src := t.acquireBufferSrc(handle)
			if srcAccess, dstAccess, srcStage, dstStage, ok := genBufferBarrier(src, *dst); ok {
				barrier.addMemoryBarrier(srcAccess, dstAccess, srcStage, dstStage)
			}
		}
	}
	t.requests.clear()
}

// RemoveUnused prunes the expected map against the current map: for each
// image in current, expected cells whose current cell is absent are
// cleared; for each buffer in current, its expected entry is deleted.
// Resources absent from current keep their expected entries. Grounded on
// CmdBufferTrackingState::removeUnusedResources (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) RemoveUnused() {
	if t.requests.len() != 0 {
		panicf("RemoveUnused called with pending requests; flush the barrier first")
	}
	for handle, entry := range t.current.entries {
		if entry.isImage() {
			exp, ok := t.expected.findImage(handle)
			if !ok {
				panicf("current image state present without a matching expected entry")
			}
			for i, c := range entry.image.cells {
				if c == nil {
					exp.cells[i] = nil
				}
			}
		} else {
			if _, ok := t.expected.findBuffer(handle); !ok {
				panicf("current buffer state present without a matching expected entry")
			}
			t.expected.delete_(handle)
		}
	}
}

// OnSync zeroes every tracked stage/access (used after a queue-level
// wait makes all prior work visible/available), preserving image
// layouts. Grounded on CmdBufferTrackingState::onSync
// (ResourceTracking.cpp).
func (t *PerCommandBufferTracker) OnSync() {
	if t.requests.len() != 0 {
		panicf("OnSync called with pending requests; flush the barrier first")
	}
	for _, entry := range t.current.entries {
		if entry.isImage() {
			for _, c := range entry.image.cells {
				if c != nil {
					c.ActiveAccesses = 0
					c.ActiveStages = 0
				}
			}
		} else {
			*entry.buffer = BufferState{}
		}
	}
}

// TakeCurrent empties and returns the tracker's current-state map, for
// the queue tracker to merge on submit. Grounded on
// CmdBufferTrackingState::takeStates (ResourceTracking.hpp).
func (t *PerCommandBufferTracker) TakeCurrent() *StateMap {
	return t.current.take()
}

// Expected exposes the expected-state map for submit-time validation.
func (t *PerCommandBufferTracker) Expected() *StateMap { return t.expected }

// Current exposes the current-state map without consuming it.
func (t *PerCommandBufferTracker) Current() *StateMap { return t.current }

// ClearAll drops all three maps, as happens after a successful submit.
// Grounded on CmdBufferTrackingState::clearAll (ResourceTracking.hpp).
func (t *PerCommandBufferTracker) ClearAll() {
	t.expected.clear()
	t.current.clear()
	t.requests.clear()
}
