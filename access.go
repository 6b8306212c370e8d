package vkg

import vk "github.com/vulkan-go/vulkan"

// readAccessMask and writeAccessMask classify every access bit this
// package cares about into the read set or the write set used by the
// barrier-generation policy in cmdtracker.go. Grounded on
// etna::READ_ACCESS_MASK / etna::WRITE_ACCESS_MASK (ResourceTracking.cpp),
// collapsed onto the classic (non-synchronization2) VkAccessFlagBits this
// binding exposes: there is no separate "sampled read" vs. "storage read"
// bit in the classic enum, both fold into AccessShaderReadBit, and there
// is no acceleration-structure access bit at all (ray tracing is out of
// scope).
const (
	readAccessMask = AccessFlags(vk.AccessIndexReadBit) |
		AccessFlags(vk.AccessIndirectCommandReadBit) |
		AccessFlags(vk.AccessVertexAttributeReadBit) |
		AccessFlags(vk.AccessUniformReadBit) |
		AccessFlags(vk.AccessInputAttachmentReadBit) |
		AccessFlags(vk.AccessShaderReadBit) |
		AccessFlags(vk.AccessColorAttachmentReadBit) |
		AccessFlags(vk.AccessDepthStencilAttachmentReadBit) |
		AccessFlags(vk.AccessTransferReadBit) |
		AccessFlags(vk.AccessMemoryReadBit)

	writeAccessMask = AccessFlags(vk.AccessShaderWriteBit) |
		AccessFlags(vk.AccessColorAttachmentWriteBit) |
		AccessFlags(vk.AccessDepthStencilAttachmentWriteBit) |
		AccessFlags(vk.AccessTransferWriteBit) |
		AccessFlags(vk.AccessMemoryWriteBit)
)

func hasReadAccess(a AccessFlags) bool  { return a&readAccessMask != 0 }
func hasWriteAccess(a AccessFlags) bool { return a&writeAccessMask != 0 }

// shaderStageToPipelineStage maps the shader-visibility flags carried by
// a descriptor-set-layout binding onto the pipeline stages that can
// execute that shader. Grounded on etna::shader_stage_to_pipeline_stage
// (DescriptorSet.cpp).
func shaderStageToPipelineStage(stages vk.ShaderStageFlags) PipelineStageFlags {
	var out PipelineStageFlags
	add := func(shaderBit vk.ShaderStageFlagBits, stageBit vk.PipelineStageFlagBits) {
		if vk.ShaderStageFlagBits(stages)&shaderBit != 0 {
			out |= PipelineStageFlags(stageBit)
		}
	}
	add(vk.ShaderStageVertexBit, vk.PipelineStageVertexShaderBit)
	add(vk.ShaderStageFragmentBit, vk.PipelineStageFragmentShaderBit)
	add(vk.ShaderStageComputeBit, vk.PipelineStageComputeShaderBit)
	add(vk.ShaderStageGeometryBit, vk.PipelineStageGeometryShaderBit)
	add(vk.ShaderStageTessellationControlBit, vk.PipelineStageTessellationControlShaderBit)
	add(vk.ShaderStageTessellationEvaluationBit, vk.PipelineStageTessellationEvaluationShaderBit)
	return out
}

// descriptorTypeToAccessFlag maps a descriptor type to the access flags
// a shader reading/writing through that binding performs. Grounded on
// etna::descriptor_type_to_access_flag (DescriptorSet.cpp).
func descriptorTypeToAccessFlag(t vk.DescriptorType) AccessFlags {
	switch t {
	case vk.DescriptorTypeSampler:
		return 0
	case vk.DescriptorTypeSampledImage, vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeUniformTexelBuffer:
		return AccessFlags(vk.AccessShaderReadBit)
	case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeUniformBufferDynamic:
		return AccessFlags(vk.AccessUniformReadBit)
	case vk.DescriptorTypeStorageBuffer, vk.DescriptorTypeStorageBufferDynamic,
		vk.DescriptorTypeStorageImage, vk.DescriptorTypeStorageTexelBuffer:
		return AccessFlags(vk.AccessShaderReadBit) | AccessFlags(vk.AccessShaderWriteBit)
	case vk.DescriptorTypeInputAttachment:
		return AccessFlags(vk.AccessInputAttachmentReadBit)
	default:
		return 0
	}
}

// isImageDescriptor reports whether a descriptor type is backed by an
// image view (true) or a buffer (false). Grounded on
// etna::is_image_resource (DescriptorSet.cpp).
func isImageDescriptor(t vk.DescriptorType) bool {
	switch t {
	case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer,
		vk.DescriptorTypeUniformBufferDynamic, vk.DescriptorTypeStorageBufferDynamic,
		vk.DescriptorTypeUniformTexelBuffer, vk.DescriptorTypeStorageTexelBuffer:
		return false
	case vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeSampledImage,
		vk.DescriptorTypeStorageImage, vk.DescriptorTypeSampler, vk.DescriptorTypeInputAttachment:
		return true
	default:
		panicf("descriptor write error: unsupported resource type %v", t)
		return false
	}
}
