package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestImageEntryIndexing(t *testing.T) {
	e := newImageEntry(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 3, 2)
	e.set(1, 1, ImageSubresourceState{Layout: ImageLayout(vk.ImageLayoutGeneral)})
	got := e.get(1, 1)
	require.NotNil(t, got)
	assert.Equal(t, ImageLayout(vk.ImageLayoutGeneral), got.Layout)
	assert.Nil(t, e.get(0, 0))
}

func TestImageEntryIndexOutOfRangePanics(t *testing.T) {
	e := newImageEntry(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1)
	assert.Panics(t, func() { e.get(5, 0) })
}

func TestImageEntryClone(t *testing.T) {
	e := newImageEntry(vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1)
	e.set(0, 0, ImageSubresourceState{Layout: ImageLayout(vk.ImageLayoutGeneral)})
	c := e.clone()
	c.set(0, 0, ImageSubresourceState{Layout: ImageLayout(vk.ImageLayoutUndefined)})
	assert.Equal(t, ImageLayout(vk.ImageLayoutGeneral), e.get(0, 0).Layout)
	assert.Equal(t, ImageLayout(vk.ImageLayoutUndefined), c.get(0, 0).Layout)
}

func TestStateMapRejectsMixedHandleKind(t *testing.T) {
	m := newStateMap()
	h := ResourceHandle(1)
	m.findOrAddBuffer(h)
	assert.Panics(t, func() { m.findOrAddImage(h, vk.Image(1), vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1) })
}

func TestStateMapTakeEmptiesSource(t *testing.T) {
	m := newStateMap()
	m.findOrAddBuffer(ResourceHandle(1))
	taken := m.take()
	assert.Equal(t, 1, taken.len())
	assert.Equal(t, 0, m.len())
}
