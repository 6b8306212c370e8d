package vkg

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// CmdBufferState is the lifecycle state of a SyncCommandBuffer.
// Grounded on the command-buffer lifecycle implied by
// etna::SyncCommandBuffer's usage across Etna.cpp and
// SimpleSubmitContext (SubmitContext.hpp): a buffer is recorded once,
// submitted, and must wait for its fence before being reset and reused.
type CmdBufferState int

const (
	CmdBufferInitial CmdBufferState = iota
	CmdBufferRecording
	CmdBufferRendering
	CmdBufferExecutable
	CmdBufferPending
)

func (s CmdBufferState) String() string {
	switch s {
	case CmdBufferInitial:
		return "Initial"
	case CmdBufferRecording:
		return "Recording"
	case CmdBufferRendering:
		return "Rendering"
	case CmdBufferExecutable:
		return "Executable"
	case CmdBufferPending:
		return "Pending"
	default:
		return "Unknown"
	}
}

// RenderingAttachment describes one color or depth attachment of a
// dynamic-rendering scope: the image it targets (for state-request
// translation), its view, the layout it must be transitioned into, and
// the load/store behavior.
type RenderingAttachment struct {
	Handle      ResourceHandle
	NativeImage vk.Image
	Aspect      vk.ImageAspectFlags
	MipLevels   uint32
	ArrayLayers uint32
	Range       vk.ImageSubresourceRange
	View        vk.ImageView
	Layout      vk.ImageLayout
	LoadOp      vk.AttachmentLoadOp
	StoreOp     vk.AttachmentStoreOp
	ClearValue  vk.ClearValue
}

func (a RenderingAttachment) stageAccess(isDepth bool) (PipelineStageFlags, AccessFlags) {
	if isDepth {
		return PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit) | PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}
	access := AccessFlags(vk.AccessColorAttachmentWriteBit)
	if a.LoadOp == vk.AttachmentLoadOpLoad {
		access |= AccessFlags(vk.AccessColorAttachmentReadBit)
	}
	return PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), access
}

// SyncCommandBuffer is the public command-recording surface. It owns a
// single raw primary command buffer. Vulkan forbids recording a
// pipeline barrier while a dynamic-rendering scope is open, so every
// resource a render-target scope touches (its attachments, and any
// descriptor sets bound inside it) must already have been transitioned
// before BeginRenderTargetState; flushBeforeOp enforces this by
// panicking instead of silently reordering work. Grounded on
// etna::SyncCommandBuffer, used throughout Etna.cpp and
// RenderTargetStates.cpp.
type SyncCommandBuffer struct {
	pool    *CommandPool
	primary *CommandBuffer

	tracker *PerCommandBufferTracker
	queue   *QueueTracker
	barrier CmdBarrier

	state        CmdBufferState
	renderExtent vk.Extent2D
}

// NewSyncCommandBuffer allocates a primary command buffer from pool and
// pairs it with queue for submit-time validation.
func NewSyncCommandBuffer(pool *CommandPool, queue *QueueTracker) (*SyncCommandBuffer, error) {
	primary, err := pool.AllocateBuffer()
	if err != nil {
		return nil, fmt.Errorf("allocating primary command buffer: %w", err)
	}
	return &SyncCommandBuffer{
		pool:    pool,
		primary: primary,
		tracker: NewPerCommandBufferTracker(),
		queue:   queue,
		state:   CmdBufferInitial,
	}, nil
}

func (cb *SyncCommandBuffer) requireState(want CmdBufferState, op string) {
	if cb.state != want {
		panicf("%s requires state %s, command buffer is in state %s", op, want, cb.state)
	}
}

// requireAnyState is requireState for operations valid in more than one
// state, e.g. BindDescriptorSet and PushConstants, which are legal both
// outside a render-target scope (compute dispatch) and inside one
// (graphics draws).
func (cb *SyncCommandBuffer) requireAnyState(op string, want ...CmdBufferState) {
	for _, w := range want {
		if cb.state == w {
			return
		}
	}
	panicf("%s requires one of states %v, command buffer is in state %s", op, want, cb.state)
}

// Begin starts recording, seeding the tracker's expected map from the
// queue's last-known state. Grounded on the Initial -> Recording
// transition implied by SyncCommandBuffer's use in
// SimpleSubmitContext::acquireNextCmd (SubmitContext.hpp).
func (cb *SyncCommandBuffer) Begin() error {
	cb.requireState(CmdBufferInitial, "Begin")
	if err := cb.primary.Begin(); err != nil {
		return fmt.Errorf("beginning primary command buffer: %w", err)
	}
	cb.queue.SetExpectedStates(cb.tracker)
	cb.state = CmdBufferRecording
	return nil
}

// End finishes recording. Any pending barrier requests are flushed
// first.
func (cb *SyncCommandBuffer) End() error {
	cb.requireState(CmdBufferRecording, "End")
	cb.flushBeforeOp()
	if err := cb.primary.End(); err != nil {
		return fmt.Errorf("ending primary command buffer: %w", err)
	}
	cb.state = CmdBufferExecutable
	return nil
}

// Reset drops all tracked state and returns the command buffer to
// Initial from any state, matching the "any -> Initial on reset"
// transition.
func (cb *SyncCommandBuffer) Reset() error {
	if err := cb.primary.Reset(); err != nil {
		return fmt.Errorf("resetting primary command buffer: %w", err)
	}
	cb.tracker.ClearAll()
	cb.barrier.clear()
	cb.state = CmdBufferInitial
	return nil
}

// NotifySubmitted moves Executable -> Pending. Called by the submit
// context right after vkQueueSubmit.
func (cb *SyncCommandBuffer) NotifySubmitted() {
	cb.requireState(CmdBufferExecutable, "NotifySubmitted")
	cb.queue.OnSubmit(cb.tracker)
	cb.state = CmdBufferPending
}

// NotifyFenceSignaled moves Pending -> Initial once the caller has
// observed this command buffer's fence signaled.
func (cb *SyncCommandBuffer) NotifyFenceSignaled() {
	cb.requireState(CmdBufferPending, "NotifyFenceSignaled")
	cb.state = CmdBufferInitial
}

// flushBeforeOp drains any pending barrier requests into the primary
// command buffer. If the tracker has pending requests while a
// render-target scope is open, flushing would require recording a
// barrier inside a dynamic-rendering scope, which Vulkan forbids — that
// is always a programmer error (resources touched inside a render scope
// must already have been transitioned before BeginRenderTargetState).
func (cb *SyncCommandBuffer) flushBeforeOp() {
	cb.tracker.FlushBarrier(&cb.barrier)
	if cb.barrier.empty() {
		return
	}
	if cb.state == CmdBufferRendering {
		panicf("a resource transition was requested while inside a render-target scope; transition resources before BeginRenderTargetState")
	}
	cb.barrier.Flush(cb.primary.VK())
}

// VK returns the raw vk.CommandBuffer, for code outside this file that
// still needs the native handle.
func (cb *SyncCommandBuffer) VK() vk.CommandBuffer {
	return cb.primary.VK()
}

// BeginRenderTargetState transitions every attachment into its required
// layout, then opens a dynamic-rendering scope over them. Only
// attachments are accepted here — shader resources bound inside the
// scope must be transitioned by the caller beforehand, since barriers
// cannot be recorded once the scope is open. Grounded on
// etna::RenderTargetState's constructor (RenderTargetStates.cpp), which
// likewise only takes attachments.
func (cb *SyncCommandBuffer) BeginRenderTargetState(extent vk.Extent2D, color []RenderingAttachment, depth *RenderingAttachment) {
	cb.requireState(CmdBufferRecording, "BeginRenderTargetState")

	colorAttachments := make([]vk.RenderingAttachmentInfo, len(color))
	for i, a := range color {
		stage, access := a.stageAccess(false)
		cb.tracker.RequestImageRangeState(a.Handle, a.NativeImage, a.Aspect, a.MipLevels, a.ArrayLayers,
			a.Range.BaseMipLevel, a.Range.LevelCount, a.Range.BaseArrayLayer, a.Range.LayerCount,
			ImageSubresourceState{ActiveStages: stage, ActiveAccesses: access, Layout: ImageLayout(a.Layout)})
		colorAttachments[i] = vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   a.View,
			ImageLayout: a.Layout,
			LoadOp:      a.LoadOp,
			StoreOp:     a.StoreOp,
			ClearValue:  a.ClearValue,
		}
	}

	var depthAttachment vk.RenderingAttachmentInfo
	var pDepth []vk.RenderingAttachmentInfo
	if depth != nil {
		stage, access := depth.stageAccess(true)
		cb.tracker.RequestImageRangeState(depth.Handle, depth.NativeImage, depth.Aspect, depth.MipLevels, depth.ArrayLayers,
			depth.Range.BaseMipLevel, depth.Range.LevelCount, depth.Range.BaseArrayLayer, depth.Range.LayerCount,
			ImageSubresourceState{ActiveStages: stage, ActiveAccesses: access, Layout: ImageLayout(depth.Layout)})
		depthAttachment = vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   depth.View,
			ImageLayout: depth.Layout,
			LoadOp:      depth.LoadOp,
			StoreOp:     depth.StoreOp,
			ClearValue:  depth.ClearValue,
		}
		pDepth = []vk.RenderingAttachmentInfo{depthAttachment}
	}

	cb.flushBeforeOp()

	renderInfo := vk.RenderingInfo{
		SType: vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		LayerCount:           1,
		ColorAttachmentCount: uint32(len(colorAttachments)),
		PColorAttachments:    colorAttachments,
	}
	if pDepth != nil {
		renderInfo.PDepthAttachment = &pDepth[0]
	}

	vk.CmdBeginRendering(cb.primary.VK(), &renderInfo)

	viewport := vk.Viewport{
		X: 0, Y: 0,
		Width: float32(extent.Width), Height: float32(extent.Height),
		MinDepth: 0, MaxDepth: 1,
	}
	scissor := vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: extent}
	vk.CmdSetViewport(cb.primary.VK(), 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb.primary.VK(), 0, 1, []vk.Rect2D{scissor})

	cb.renderExtent = extent
	cb.state = CmdBufferRendering
}

// EndRenderTargetState closes the dynamic-rendering scope opened by
// BeginRenderTargetState.
func (cb *SyncCommandBuffer) EndRenderTargetState() {
	cb.requireState(CmdBufferRendering, "EndRenderTargetState")
	vk.CmdEndRendering(cb.primary.VK())
	cb.state = CmdBufferRecording
}

// --- transfer & clear operations (flush before, then raw call) ---

func (cb *SyncCommandBuffer) CopyBuffer(srcHandle ResourceHandle, src vk.Buffer, dstHandle ResourceHandle, dst vk.Buffer, regions []vk.BufferCopy) {
	cb.requireState(CmdBufferRecording, "CopyBuffer")
	cb.tracker.RequestBufferState(srcHandle, BufferState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferReadBit)})
	cb.tracker.RequestBufferState(dstHandle, BufferState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit)})
	cb.flushBeforeOp()
	vk.CmdCopyBuffer(cb.primary.VK(), src, dst, uint32(len(regions)), regions)
}

func (cb *SyncCommandBuffer) CopyBufferToImage(srcHandle ResourceHandle, src vk.Buffer, dstHandle ResourceHandle, dst vk.Image, aspect vk.ImageAspectFlags, mips, layers uint32, regions []vk.BufferImageCopy) {
	cb.requireState(CmdBufferRecording, "CopyBufferToImage")
	cb.tracker.RequestBufferState(srcHandle, BufferState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferReadBit)})
	for _, r := range regions {
		cb.tracker.RequestImageRangeState(dstHandle, dst, aspect, mips, layers,
			r.ImageSubresource.MipLevel, 1, r.ImageSubresource.BaseArrayLayer, r.ImageSubresource.LayerCount,
			ImageSubresourceState{
				ActiveStages:   PipelineStageFlags(vk.PipelineStageTransferBit),
				ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit),
				Layout:         ImageLayout(vk.ImageLayoutTransferDstOptimal),
			})
	}
	cb.flushBeforeOp()
	vk.CmdCopyBufferToImage(cb.primary.VK(), src, dst, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
}

func (cb *SyncCommandBuffer) BlitImage(srcHandle ResourceHandle, src vk.Image, srcAspect vk.ImageAspectFlags, srcMips, srcLayers uint32,
	dstHandle ResourceHandle, dst vk.Image, dstAspect vk.ImageAspectFlags, dstMips, dstLayers uint32,
	regions []vk.ImageBlit, filter vk.Filter) {
	cb.requireState(CmdBufferRecording, "BlitImage")
	for _, r := range regions {
		cb.tracker.RequestImageRangeState(srcHandle, src, srcAspect, srcMips, srcLayers,
			r.SrcSubresource.MipLevel, 1, r.SrcSubresource.BaseArrayLayer, r.SrcSubresource.LayerCount,
			ImageSubresourceState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferReadBit), Layout: ImageLayout(vk.ImageLayoutTransferSrcOptimal)})
		cb.tracker.RequestImageRangeState(dstHandle, dst, dstAspect, dstMips, dstLayers,
			r.DstSubresource.MipLevel, 1, r.DstSubresource.BaseArrayLayer, r.DstSubresource.LayerCount,
			ImageSubresourceState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit), Layout: ImageLayout(vk.ImageLayoutTransferDstOptimal)})
	}
	cb.flushBeforeOp()
	vk.CmdBlitImage(cb.primary.VK(), src, vk.ImageLayoutTransferSrcOptimal, dst, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions, filter)
}

func (cb *SyncCommandBuffer) ClearColorImage(handle ResourceHandle, img vk.Image, aspect vk.ImageAspectFlags, mips, layers uint32, color vk.ClearColorValue, ranges []vk.ImageSubresourceRange) {
	cb.requireState(CmdBufferRecording, "ClearColorImage")
	for _, r := range ranges {
		cb.tracker.RequestImageRangeState(handle, img, aspect, mips, layers,
			r.BaseMipLevel, r.LevelCount, r.BaseArrayLayer, r.LayerCount,
			ImageSubresourceState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit), Layout: ImageLayout(vk.ImageLayoutTransferDstOptimal)})
	}
	cb.flushBeforeOp()
	vk.CmdClearColorImage(cb.primary.VK(), img, vk.ImageLayoutTransferDstOptimal, &color, uint32(len(ranges)), ranges)
}

func (cb *SyncCommandBuffer) FillBuffer(handle ResourceHandle, buf vk.Buffer, offset, size vk.DeviceSize, data uint32) {
	cb.requireState(CmdBufferRecording, "FillBuffer")
	cb.tracker.RequestBufferState(handle, BufferState{ActiveStages: PipelineStageFlags(vk.PipelineStageTransferBit), ActiveAccesses: AccessFlags(vk.AccessTransferWriteBit)})
	cb.flushBeforeOp()
	vk.CmdFillBuffer(cb.primary.VK(), buf, offset, size, data)
}

// TransformLayout requests that an image be moved into a new layout
// without any other access, useful for one-off transitions the caller
// wants performed eagerly (e.g. preparing a swapchain image for
// presentation). Grounded on the manual transitions TransitionImageLayout
// used to perform by hand (imageresource.go, superseded by this tracker).
func (cb *SyncCommandBuffer) TransformLayout(handle ResourceHandle, img vk.Image, aspect vk.ImageAspectFlags, mips, layers uint32, newLayout vk.ImageLayout) {
	cb.requireState(CmdBufferRecording, "TransformLayout")
	cb.tracker.RequestImageRangeState(handle, img, aspect, mips, layers, 0, mips, 0, layers,
		ImageSubresourceState{Layout: ImageLayout(newLayout)})
	cb.flushBeforeOp()
}

// --- dispatch / draw ---

func (cb *SyncCommandBuffer) Dispatch(x, y, z uint32) {
	cb.requireState(CmdBufferRecording, "Dispatch")
	cb.flushBeforeOp()
	vk.CmdDispatch(cb.primary.VK(), x, y, z)
}

// BindPipeline binds a graphics or compute pipeline according to
// bindPoint, mirroring the bindPoint parameter BindDescriptorSet already
// uses to disambiguate the two. Valid either mid-recording (before a
// compute Dispatch) or inside a render-target scope (before a graphics
// Draw/DrawIndexed).
func (cb *SyncCommandBuffer) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	cb.requireAnyState("BindPipeline", CmdBufferRecording, CmdBufferRendering)
	vk.CmdBindPipeline(cb.VK(), bindPoint, pipeline)
}

func (cb *SyncCommandBuffer) BindDescriptorSet(bindPoint vk.PipelineBindPoint, layout *PipelineLayout, firstSet uint32, layoutInfo *DescriptorSetLayout, ds *DescriptorSet) {
	cb.requireAnyState("BindDescriptorSet", CmdBufferRecording, CmdBufferRendering)
	ds.RequestStates(layoutInfo, cb.tracker)
	cb.flushBeforeOp()
	sets := []vk.DescriptorSet{ds.VKDescriptorSet}
	vk.CmdBindDescriptorSets(cb.VK(), bindPoint, layout.VKPipelineLayout, firstSet, 1, sets, 0, nil)
}

func (cb *SyncCommandBuffer) PushConstants(program *ShaderProgramInfo, offset, size uint32, data []byte) {
	cb.requireAnyState("PushConstants", CmdBufferRecording, CmdBufferRendering)
	program.CheckPushConstantRange(offset, size)
	vk.CmdPushConstants(cb.VK(), program.PipelineLayout.VKPipelineLayout, program.PushConstant.Stages, offset, size, unsafe.Pointer(&data[0]))
}

func (cb *SyncCommandBuffer) BindVertexBuffer(binding uint32, handle ResourceHandle, buf vk.Buffer, offset vk.DeviceSize) {
	cb.requireState(CmdBufferRendering, "BindVertexBuffer")
	cb.tracker.RequestBufferState(handle, BufferState{ActiveStages: PipelineStageFlags(vk.PipelineStageVertexInputBit), ActiveAccesses: AccessFlags(vk.AccessVertexAttributeReadBit)})
	cb.flushBeforeOp()
	buffers := []vk.Buffer{buf}
	offsets := []vk.DeviceSize{offset}
	vk.CmdBindVertexBuffers(cb.VK(), binding, 1, buffers, offsets)
}

func (cb *SyncCommandBuffer) BindIndexBuffer(handle ResourceHandle, buf vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	cb.requireState(CmdBufferRendering, "BindIndexBuffer")
	cb.tracker.RequestBufferState(handle, BufferState{ActiveStages: PipelineStageFlags(vk.PipelineStageVertexInputBit), ActiveAccesses: AccessFlags(vk.AccessIndexReadBit)})
	cb.flushBeforeOp()
	vk.CmdBindIndexBuffer(cb.VK(), buf, offset, indexType)
}

func (cb *SyncCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.requireState(CmdBufferRendering, "Draw")
	vk.CmdDraw(cb.VK(), vertexCount, instanceCount, firstVertex, firstInstance)
}

func (cb *SyncCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.requireState(CmdBufferRendering, "DrawIndexed")
	vk.CmdDrawIndexed(cb.VK(), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
