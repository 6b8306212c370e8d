package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestHasReadWriteAccess(t *testing.T) {
	assert.True(t, hasReadAccess(AccessFlags(vk.AccessShaderReadBit)))
	assert.False(t, hasWriteAccess(AccessFlags(vk.AccessShaderReadBit)))
	assert.True(t, hasWriteAccess(AccessFlags(vk.AccessTransferWriteBit)))
	assert.False(t, hasReadAccess(AccessFlags(vk.AccessTransferWriteBit)))
}

func TestShaderStageToPipelineStage(t *testing.T) {
	got := shaderStageToPipelineStage(vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit))
	want := PipelineStageFlags(vk.PipelineStageVertexShaderBit) | PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	assert.Equal(t, want, got)
}

func TestDescriptorTypeToAccessFlag(t *testing.T) {
	assert.Equal(t, AccessFlags(vk.AccessUniformReadBit), descriptorTypeToAccessFlag(vk.DescriptorTypeUniformBuffer))
	assert.Equal(t,
		AccessFlags(vk.AccessShaderReadBit)|AccessFlags(vk.AccessShaderWriteBit),
		descriptorTypeToAccessFlag(vk.DescriptorTypeStorageBuffer))
	assert.Equal(t, AccessFlags(0), descriptorTypeToAccessFlag(vk.DescriptorTypeSampler))
}

func TestIsImageDescriptor(t *testing.T) {
	assert.True(t, isImageDescriptor(vk.DescriptorTypeCombinedImageSampler))
	assert.False(t, isImageDescriptor(vk.DescriptorTypeUniformBuffer))
}

func TestIsImageDescriptorPanicsOnUnsupported(t *testing.T) {
	assert.Panics(t, func() { isImageDescriptor(vk.DescriptorType(9999)) })
}
