package vkg

import vk "github.com/vulkan-go/vulkan"

// QueueTracker holds the last known post-submit state of every resource
// a queue has ever touched. Grounded on
// etna::tracking::QueueTrackingState (ResourceTracking.hpp/.cpp).
//
// This is an explicit struct a caller constructs and threads through its
// SyncCommandBuffers and SimpleSubmitContext rather than a
// package-level singleton.
type QueueTracker struct {
	currentStates *StateMap
}

// NewQueueTracker returns an empty queue tracker.
func NewQueueTracker() *QueueTracker {
	return &QueueTracker{currentStates: newStateMap()}
}

// OnWait zeroes every tracked stage/access after a vkQueueWaitIdle (or
// fence wait covering this queue), since all prior work is now known to
// be complete and visible. Grounded on QueueTrackingState::onWait
// (ResourceTracking.cpp).
func (q *QueueTracker) OnWait() {
	for _, entry := range q.currentStates.entries {
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

// SetExpectedStates seeds a fresh command-buffer tracker's expected map
// from this queue's last-known state, so the tracker can validate what
// it assumes against what is actually true once it is submitted.
// Grounded on QueueTrackingState::setExpectedStates (ResourceTracking.hpp).
func (q *QueueTracker) SetExpectedStates(t *PerCommandBufferTracker) {
	t.InitExpected(q.currentStates)
}

// OnResourceDeletion drops a resource's last-known state, called by
// ResourceRegistry.Release so a future resource reusing the same native
// handle never inherits a destroyed resource's tracked state. Grounded
// on QueueTrackingState::onResourceDeletion (ResourceTracking.hpp).
func (q *QueueTracker) OnResourceDeletion(handle ResourceHandle) {
	q.currentStates.delete_(handle)
}

func isCompatibleBufferState(state, expected BufferState) bool {
	stagesCompatible := expected.ActiveStages&PipelineStageFlags(vk.PipelineStageAllCommandsBit) != 0
	accessesCompatible := expected.ActiveAccesses&(AccessFlags(vk.AccessMemoryReadBit)|AccessFlags(vk.AccessMemoryWriteBit)) != 0

	if state.ActiveStages&expected.ActiveStages == state.ActiveStages {
		stagesCompatible = true
	}
	if state.ActiveAccesses&expected.ActiveAccesses == state.ActiveAccesses {
		accessesCompatible = true
	}
	return stagesCompatible && accessesCompatible
}

func isCompatibleImageState(state, expected ImageSubresourceState) bool {
	if state.Layout != expected.Layout && expected.Layout != defaultImageLayout {
		return false
	}

	stagesCompatible := expected.ActiveStages&PipelineStageFlags(vk.PipelineStageAllCommandsBit) != 0
	accessesCompatible := expected.ActiveAccesses&(AccessFlags(vk.AccessMemoryReadBit)|AccessFlags(vk.AccessMemoryWriteBit)) != 0

	if state.ActiveStages&expected.ActiveStages == state.ActiveStages {
		stagesCompatible = true
	}
	if state.ActiveAccesses&expected.ActiveAccesses == state.ActiveAccesses {
		accessesCompatible = true
	}
	return stagesCompatible && accessesCompatible
}

// OnSubmit validates a command-buffer tracker's expectations against
// this queue's last-known state, then merges the tracker's final
// current-state map in. A mismatch between what the tracker expected
// and what the queue actually knows to be true is always a programmer
// error (a resource was used outside of tracked recording, or a barrier
// was hand-rolled around the tracker), so it panics rather than
// returning an error. Grounded on QueueTrackingState::onSubmit
// (ResourceTracking.cpp).
func (q *QueueTracker) OnSubmit(t *PerCommandBufferTracker) {
	t.RemoveUnused()

	for handle, exEntry := range t.Expected().entries {
		curEntry, ok := q.currentStates.entries[handle]
		if !ok {
			continue // resource never submitted to this queue before
		}

		if exEntry.isImage() {
			cur := curEntry.image
			exp := exEntry.image
			for i := range exp.cells {
				if cur.cells[i] != nil && exp.cells[i] != nil {
					if !isCompatibleImageState(*cur.cells[i], *exp.cells[i]) {
						panicf("expected resource state is incompatible with actual resource state for image subresource %d", i)
					}
				}
			}
		} else {
			if !isCompatibleBufferState(*curEntry.buffer, *exEntry.buffer) {
				panicf("expected resource state is incompatible with actual resource state for buffer")
			}
		}
	}

	current := t.Current()
	for handle, entry := range current.entries {
		existing, ok := q.currentStates.entries[handle]
		if !ok {
			q.currentStates.entries[handle] = entry
			continue
		}
		if entry.isImage() {
			for i, c := range entry.image.cells {
				if c != nil {
					existing.image.cells[i] = c
				}
			}
		} else {
			existing.buffer = entry.buffer
		}
	}

	t.ClearAll()
}
