package vkg

import vk "github.com/vulkan-go/vulkan"

// PipelineStageFlags, AccessFlags and ImageLayout are the package's own
// classic (non-synchronization2) flag and layout types, converted to and
// from the vk types where they reach the Vulkan API.
type PipelineStageFlags vk.PipelineStageFlags
type AccessFlags vk.AccessFlags
type ImageLayout vk.ImageLayout

// ImageSubresourceState is the tracked state of one (mip, layer) cell of
// an image: the pipeline stages and access types that last touched it,
// and the image layout it is currently in. Grounded on
// etna::tracking::ImageState::SubresourceState (ResourceTracking.hpp).
type ImageSubresourceState struct {
	ActiveStages   PipelineStageFlags
	ActiveAccesses AccessFlags
	Layout         ImageLayout
}

func (s ImageSubresourceState) used() bool {
	return s.ActiveStages != 0 || s.ActiveAccesses != 0
}

// BufferState is the tracked state of a whole buffer (buffers only ever
// generate memory barriers, never a layout transition). Grounded on
// etna::tracking::BufferState (ResourceTracking.hpp).
type BufferState struct {
	ActiveStages   PipelineStageFlags
	ActiveAccesses AccessFlags
}

func (s BufferState) used() bool {
	return s.ActiveStages != 0 || s.ActiveAccesses != 0
}

// defaultImageLayout is the layout a freshly-discovered subresource is
// assumed to be in: Undefined, matching vk::ImageLayout::eUndefined.
const defaultImageLayout = ImageLayout(vk.ImageLayoutUndefined)
