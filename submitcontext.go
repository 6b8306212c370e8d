package vkg

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// SwapchainState reports the outcome of an acquire or present call: Ok
// means the image is good to draw/present, Suboptimal means it can
// still be drawn/presented but the swapchain should be recreated soon,
// and OutOfDate means the caller must recreate the swapchain before
// doing anything else. Grounded on etna::SwapchainState
// (SubmitContext.hpp).
type SwapchainState int

const (
	SwapchainOk SwapchainState = iota
	SwapchainSuboptimal
	SwapchainOutOfDate
)

// SimpleSubmitContext drives one command buffer per frame-in-flight
// against a swapchain, pacing CPU recording against GPU completion with
// a fence per frame. It hands the caller a SyncCommandBuffer instead of
// recording on its behalf and flips the DynamicDescriptorPool on each
// submit; the QueueTracker's OnWait is called only from
// RecreateSwapchain. Grounded on etna::SimpleSubmitContext
// (SubmitContext.hpp).
type SimpleSubmitContext struct {
	Device         *Device
	GraphicsQueue  *Queue
	PresentQueue   *Queue
	Swapchain      *Swapchain
	VKSurface      vk.Surface
	PhysicalDevice *PhysicalDevice

	Pool            *CommandPool
	Tracker         *QueueTracker
	DescriptorPool  *DynamicDescriptorPool
	framesInFlight  uint32
	cmdBuffers      []*SyncCommandBuffer
	presentSems     []vk.Semaphore
	renderSems      []vk.Semaphore
	waitFences      []vk.Fence
	frameIndex      uint32
	lastImageIndex  uint32
}

// NewSimpleSubmitContext allocates framesInFlight command buffers and
// per-frame sync objects.
func NewSimpleSubmitContext(device *Device, graphicsQueue, presentQueue *Queue, swapchain *Swapchain, tracker *QueueTracker, descriptorPool *DynamicDescriptorPool, framesInFlight uint32) (*SimpleSubmitContext, error) {
	pool, err := device.CreateCommandPool(graphicsQueue.QueueFamily)
	if err != nil {
		return nil, fmt.Errorf("creating submit-context command pool: %w", err)
	}

	ctx := &SimpleSubmitContext{
		Device:         device,
		GraphicsQueue:  graphicsQueue,
		PresentQueue:   presentQueue,
		Swapchain:      swapchain,
		Pool:           pool,
		Tracker:        tracker,
		DescriptorPool: descriptorPool,
		framesInFlight: framesInFlight,
	}

	ctx.cmdBuffers = make([]*SyncCommandBuffer, framesInFlight)
	for i := range ctx.cmdBuffers {
		cb, err := NewSyncCommandBuffer(pool, tracker)
		if err != nil {
			return nil, fmt.Errorf("allocating frame %d command buffer: %w", i, err)
		}
		ctx.cmdBuffers[i] = cb
	}

	ctx.presentSems = make([]vk.Semaphore, framesInFlight)
	ctx.renderSems = make([]vk.Semaphore, framesInFlight)
	ctx.waitFences = make([]vk.Fence, framesInFlight)
	for i := uint32(0); i < framesInFlight; i++ {
		ctx.presentSems[i], _ = device.VKCreateSemaphore()
		ctx.renderSems[i], _ = device.VKCreateSemaphore()
		ctx.waitFences[i], _ = device.VKCreateFence(true)
	}

	return ctx, nil
}

func (c *SimpleSubmitContext) GetFramesInFlight() uint32 {
	return c.framesInFlight
}

func (c *SimpleSubmitContext) GetBackbuffersCount() int {
	return len(c.cmdBuffers)
}

// AcquireNextCmd waits for the command buffer of the current frame slot
// to finish its previous submission, resets it, and begins recording.
// The fence wait (vkWaitForFences followed by vkResetFences) drives the
// buffer's Pending -> Initial transition; the QueueTracker is not
// notified.
func (c *SimpleSubmitContext) AcquireNextCmd() (*SyncCommandBuffer, error) {
	fence := c.waitFences[c.frameIndex]
	vk.WaitForFences(c.Device.VKDevice, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64)
	vk.ResetFences(c.Device.VKDevice, 1, []vk.Fence{fence})

	cb := c.cmdBuffers[c.frameIndex]
	if cb.state == CmdBufferPending {
		cb.NotifyFenceSignaled()
	}
	if err := cb.Reset(); err != nil {
		return nil, fmt.Errorf("resetting frame %d command buffer: %w", c.frameIndex, err)
	}
	if err := cb.Begin(); err != nil {
		return nil, fmt.Errorf("beginning frame %d command buffer: %w", c.frameIndex, err)
	}
	return cb, nil
}

// AcquireBackbuffer acquires the next swapchain image to render into.
func (c *SimpleSubmitContext) AcquireBackbuffer() (*Image, uint32, SwapchainState) {
	var imageIndex uint32
	res := vk.AcquireNextImage(c.Device.VKDevice, c.Swapchain.VKSwapchain, vk.MaxUint64, c.presentSems[c.frameIndex], vk.NullFence, &imageIndex)
	if res == vk.ErrorOutOfDate {
		return nil, 0, SwapchainOutOfDate
	}
	if res == vk.Suboptimal {
		c.lastImageIndex = imageIndex
		return nil, imageIndex, SwapchainSuboptimal
	}
	c.lastImageIndex = imageIndex
	return nil, imageIndex, SwapchainOk
}

// SubmitCmd ends recording, submits cmd waiting on the current frame's
// acquire semaphore and signaling its render semaphore, and presents if
// present is true.
func (c *SimpleSubmitContext) SubmitCmd(cb *SyncCommandBuffer, present bool) (SwapchainState, error) {
	if err := cb.End(); err != nil {
		return SwapchainOk, fmt.Errorf("ending command buffer: %w", err)
	}

	waitSemaphores := []vk.Semaphore{c.presentSems[c.frameIndex]}
	signalSemaphores := []vk.Semaphore{c.renderSems[c.frameIndex]}
	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}

	submitInfo := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      waitSemaphores,
		PWaitDstStageMask:    waitStages,
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    signalSemaphores,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.VK()},
	}}

	if err := vk.Error(vk.QueueSubmit(c.GraphicsQueue.VKQueue, 1, submitInfo, c.waitFences[c.frameIndex])); err != nil {
		return SwapchainOk, fmt.Errorf("submitting command buffer: %w", err)
	}
	cb.NotifySubmitted()

	state := SwapchainOk
	if present {
		imageIndices := []uint32{c.lastImageIndex}
		presentInfo := vk.PresentInfo{
			SType:              vk.StructureTypePresentInfo,
			SwapchainCount:     1,
			PSwapchains:        []vk.Swapchain{c.Swapchain.VKSwapchain},
			WaitSemaphoreCount: 1,
			PWaitSemaphores:    signalSemaphores,
			PImageIndices:      imageIndices,
		}
		res := vk.QueuePresent(c.GraphicsQueue.VKQueue, &presentInfo)
		switch res {
		case vk.ErrorOutOfDate:
			state = SwapchainOutOfDate
		case vk.Suboptimal:
			state = SwapchainSuboptimal
		default:
			if err := vk.Error(res); err != nil {
				return SwapchainOk, fmt.Errorf("presenting: %w", err)
			}
		}
	}

	c.DescriptorPool.Flip()
	c.frameIndex = (c.frameIndex + 1) % c.framesInFlight
	return state, nil
}

// RecreateSwapchain waits for the device to go idle, destroys the old
// swapchain and recreates it at extent. Every in-flight command buffer
// and its tracked resource state is invalidated by this — callers must
// not have any AcquireNextCmd in progress.
func (c *SimpleSubmitContext) RecreateSwapchain(extent vk.Extent2D) error {
	c.Device.WaitIdle()
	c.Tracker.OnWait()

	old := c.Swapchain
	newSwapchain, err := c.Device.CreateSwapchain(c.VKSurface, c.GraphicsQueue, c.PresentQueue, &CreateSwapchainOptions{
		ActualSize:                extent,
		DesiredNumSwapchainImages: len(c.cmdBuffers),
		OldSwapchain:              old,
	})
	if err != nil {
		return fmt.Errorf("recreating swapchain: %w", err)
	}
	old.Destroy()
	c.Swapchain = newSwapchain
	return nil
}

// Destroy tears down per-frame sync objects and the command pool.
func (c *SimpleSubmitContext) Destroy() {
	for i := uint32(0); i < c.framesInFlight; i++ {
		c.Device.VKDestroySemaphore(c.presentSems[i])
		c.Device.VKDestroySemaphore(c.renderSems[i])
		c.Device.VKDestroyFence(c.waitFences[i])
	}
	c.Pool.Destroy()
}
