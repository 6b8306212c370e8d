package vkg

import (
	vk "github.com/vulkan-go/vulkan"
)

// Descriptor is the shader-binding identity a DescriptorBinder exposes:
// which descriptor-set/binding slot it occupies and which descriptor
// type/shader stages it is visible to.
type Descriptor struct {
	Type        vk.DescriptorType
	ShaderStage vk.ShaderStageFlags
	Set         int
	Binding     int
}

type DescriptorBinder interface {
	Descriptor() *Descriptor
}

// BufferObject is anything that can be copied into a host- or
// device-bound buffer (boundbuffer.go) via its raw bytes.
type BufferObject interface {
	Bytes() []byte
}

type IndexSource interface {
	BufferObject
	IndexType() vk.IndexType
}

type VertexSource interface {
	BufferObject
	GetBindingDesciption() vk.VertexInputBindingDescription
	GetAttributeDescriptions() []vk.VertexInputAttributeDescription
}

type UBO interface {
	BufferObject
	DescriptorBinder
}
