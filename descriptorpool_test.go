package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestIsSetValidAfterFlips(t *testing.T) {
	p := &DynamicDescriptorPool{numFrames: 3}
	ds := &DescriptorSet{VKDescriptorSet: vk.DescriptorSet(1), Generation: p.flipsCount}
	assert.True(t, p.IsSetValid(ds))

	p.flipsCount = 2
	assert.True(t, p.IsSetValid(ds))

	p.flipsCount = 3
	assert.False(t, p.IsSetValid(ds))
}

func TestIsSetValidNullHandleAlwaysInvalid(t *testing.T) {
	p := &DynamicDescriptorPool{numFrames: 3}
	ds := &DescriptorSet{VKDescriptorSet: vk.NullHandle, Generation: p.flipsCount}
	assert.False(t, p.IsSetValid(ds))
}
