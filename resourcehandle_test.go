package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceRegistryMintsUniqueHandles(t *testing.T) {
	r := NewResourceRegistry(nil)
	a := r.NewImageHandle()
	b := r.NewBufferHandle()
	assert.NotEqual(t, a, b)
}

func TestResourceRegistryReleaseNotifiesTracker(t *testing.T) {
	queue := NewQueueTracker()
	r := NewResourceRegistry(queue)
	h := r.NewBufferHandle()

	tracker := NewPerCommandBufferTracker()
	queue.SetExpectedStates(tracker)
	tracker.RequestBufferState(h, BufferState{})
	var barrier CmdBarrier
	tracker.FlushBarrier(&barrier)
	queue.OnSubmit(tracker)

	_, ok := queue.currentStates.findBuffer(h)
	assert.True(t, ok)

	r.Release(h)
	_, ok = queue.currentStates.findBuffer(h)
	assert.False(t, ok)
}
