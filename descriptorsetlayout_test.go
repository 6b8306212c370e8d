package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestBindingKeyStableUnderReorder(t *testing.T) {
	a := []vk.DescriptorSetLayoutBinding{
		{Binding: 1, DescriptorType: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit)},
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}
	b := []vk.DescriptorSetLayoutBinding{a[1], a[0]}
	assert.Equal(t, bindingKey(a), bindingKey(b))
}

func TestBindingKeyDiffersOnDescriptorType(t *testing.T) {
	a := []vk.DescriptorSetLayoutBinding{{Binding: 0, DescriptorType: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1}}
	b := []vk.DescriptorSetLayoutBinding{{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1}}
	assert.NotEqual(t, bindingKey(a), bindingKey(b))
}
