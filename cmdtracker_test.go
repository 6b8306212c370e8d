package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func newTestRegistry() *ResourceRegistry {
	return NewResourceRegistry(nil)
}

func TestFlushBarrierFirstUseProducesNoBarrier(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewBufferHandle()

	tracker.RequestBufferState(h, BufferState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageTransferBit),
		ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit),
	})

	var barrier CmdBarrier
	tracker.FlushBarrier(&barrier)
	assert.True(t, barrier.empty(), "first use of a resource must not produce a barrier")
}

func TestFlushBarrierReadReadMergesWithoutBarrier(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewBufferHandle()

	tracker.RequestBufferState(h, BufferState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageVertexShaderBit),
		ActiveAccesses: AccessFlags(vk.AccessShaderReadBit),
	})
	var barrier CmdBarrier
	tracker.FlushBarrier(&barrier)
	require.True(t, barrier.empty())

	tracker.RequestBufferState(h, BufferState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		ActiveAccesses: AccessFlags(vk.AccessShaderReadBit),
	})
	tracker.FlushBarrier(&barrier)
	assert.True(t, barrier.empty(), "read after read must not produce a barrier")

	src, ok := tracker.current.findBuffer(h)
	require.True(t, ok)
	assert.Equal(t, PipelineStageFlags(vk.PipelineStageVertexShaderBit)|PipelineStageFlags(vk.PipelineStageFragmentShaderBit), src.ActiveStages)
}

func TestFlushBarrierWriteWriteProducesExactDstStages(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewBufferHandle()

	tracker.RequestBufferState(h, BufferState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageTransferBit),
		ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit),
	})
	var barrier CmdBarrier
	tracker.FlushBarrier(&barrier)
	require.True(t, barrier.empty())

	tracker.RequestBufferState(h, BufferState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		ActiveAccesses: AccessFlags(vk.AccessShaderWriteBit),
	})
	tracker.FlushBarrier(&barrier)
	require.False(t, barrier.empty())
	assert.True(t, barrier.hasMemory)
	assert.Equal(t, PipelineStageFlags(vk.PipelineStageComputeShaderBit), barrier.dstStage)
}

func TestFlushBarrierImageLayoutChangeFromUndefinedBarriers(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewImageHandle()
	img := vk.Image(1)

	tracker.RequestImageState(h, img, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1, 0, 0, ImageSubresourceState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageTransferBit),
		ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit),
		Layout:         ImageLayout(vk.ImageLayoutTransferDstOptimal),
	})
	var barrier CmdBarrier
	tracker.FlushBarrier(&barrier)
	require.False(t, barrier.empty(), "first use into a non-undefined layout is still a layout change and must barrier")
	require.Len(t, barrier.imageBarriers, 1)
	assert.Equal(t, vk.ImageLayout(vk.ImageLayoutUndefined), barrier.imageBarriers[0].OldLayout)
	assert.Equal(t, vk.ImageLayout(vk.ImageLayoutTransferDstOptimal), barrier.imageBarriers[0].NewLayout)
}

func TestRequestImageStateConflictingLayoutPanics(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewImageHandle()
	img := vk.Image(1)

	tracker.RequestImageState(h, img, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1, 0, 0, ImageSubresourceState{
		Layout: ImageLayout(vk.ImageLayoutTransferDstOptimal),
	})

	assert.Panics(t, func() {
		tracker.RequestImageState(h, img, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1, 0, 0, ImageSubresourceState{
			Layout: ImageLayout(vk.ImageLayoutShaderReadOnlyOptimal),
		})
	})
}

func TestRemoveUnusedPrunesUntouchedSubresources(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewImageHandle()
	img := vk.Image(1)

	tracker.RequestImageState(h, img, vk.ImageAspectFlags(vk.ImageAspectColorBit), 2, 1, 0, 0, ImageSubresourceState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageTransferBit),
		ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit),
		Layout:         ImageLayout(vk.ImageLayoutTransferDstOptimal),
	})
	var barrier CmdBarrier
	tracker.FlushBarrier(&barrier)

	ie, ok := tracker.expected.findImage(h)
	require.True(t, ok)
	assert.NotNil(t, ie.get(0, 0))

	tracker.RemoveUnused()
	ie, ok = tracker.expected.findImage(h)
	require.True(t, ok)
	assert.NotNil(t, ie.get(0, 0), "the touched mip must remain expected")
	assert.Nil(t, ie.get(1, 0), "the untouched mip must be pruned from expected")
}

func TestRemoveUnusedPanicsWithPendingRequests(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewBufferHandle()
	tracker.RequestBufferState(h, BufferState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit)})

	assert.Panics(t, func() { tracker.RemoveUnused() })
}

func TestOnSyncZeroesCurrentButKeepsLayout(t *testing.T) {
	reg := newTestRegistry()
	tracker := NewPerCommandBufferTracker()
	h := reg.NewImageHandle()
	img := vk.Image(1)

	tracker.RequestImageState(h, img, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1, 0, 0, ImageSubresourceState{
		ActiveStages:   PipelineStageFlags(vk.PipelineStageTransferBit),
		ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit),
		Layout:         ImageLayout(vk.ImageLayoutTransferDstOptimal),
	})
	var barrier CmdBarrier
	tracker.FlushBarrier(&barrier)

	tracker.OnSync()

	ie, ok := tracker.current.findImage(h)
	require.True(t, ok)
	cell := ie.get(0, 0)
	require.NotNil(t, cell)
	assert.Equal(t, PipelineStageFlags(0), cell.ActiveStages)
	assert.Equal(t, AccessFlags(0), cell.ActiveAccesses)
	assert.Equal(t, ImageLayout(vk.ImageLayoutTransferDstOptimal), cell.Layout)
}
