package vkg

import vk "github.com/vulkan-go/vulkan"

// MaxDescriptorBindings bounds the binding index space a single
// descriptor-set layout can use, so a layout's binding table can be
// stored as a fixed-size array instead of a map. Grounded on
// etna::MAX_DESCRIPTOR_BINDINGS (DescriptorSet.cpp/DescriptorSet.hpp).
const MaxDescriptorBindings = 16

// PushConstantRange is the push-constant contract of a pipeline layout:
// the byte range pushed constants occupy and the shader stages allowed
// to read them.
type PushConstantRange struct {
	Offset uint32
	Size   uint32
	Stages vk.ShaderStageFlags
}

// DescriptorBindingInfo is the shader-reflection-equivalent metadata for
// one binding slot of a descriptor-set layout: its resource type, array
// size, and the shader stages that can see it. Supplied by the caller —
// this package does not reflect SPIR-V.
type DescriptorBindingInfo struct {
	DescriptorType  vk.DescriptorType
	DescriptorCount uint32
	StageFlags      vk.ShaderStageFlags
}

// ShaderProgramInfo is the external-collaborator contract a caller
// supplies for each shader program: its pipeline layout, push-constant
// range, and per-descriptor-set-layout-id binding table. Grounded on
// etna::ShaderProgramManager's program-info bookkeeping (Etna.cpp), with
// reflection itself left to the caller.
type ShaderProgramInfo struct {
	PipelineLayout    *PipelineLayout
	PushConstant      PushConstantRange
	SetLayoutBindings map[DescriptorLayoutID][MaxDescriptorBindings]DescriptorBindingInfo
}

// CheckPushConstantRange panics if [offset, offset+size) falls outside
// the program's declared push-constant range — a programmer error, not
// a recoverable one.
func (p *ShaderProgramInfo) CheckPushConstantRange(offset, size uint32) {
	if offset < p.PushConstant.Offset || offset+size > p.PushConstant.Offset+p.PushConstant.Size {
		panicf("push constants [%d, %d) fall outside the program's declared range [%d, %d)",
			offset, offset+size, p.PushConstant.Offset, p.PushConstant.Offset+p.PushConstant.Size)
	}
}
