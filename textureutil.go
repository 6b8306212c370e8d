package vkg

import (
	"fmt"
	"image"
	"image/draw"

	// Load the png image loader
	_ "image/png"
	"os"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// StageTextureFromDisk decodes filename and uploads it through cb,
// recording the copy and the two layout transitions as tracked
// operations (see StageTextureFromImage).
func (p *ImageResourcePool) StageTextureFromDisk(filename string, cb *SyncCommandBuffer, queue *Queue) (*ImageResource, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	src, _, err := image.Decode(reader)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()

	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Bounds(), src, b.Min, draw.Src)

	return p.StageTextureFromImage(m, cb, queue)
}

// StageTextureFromImage allocates a device-local image, copies srcImg's
// pixels into it through a staging buffer, and transitions it into
// ShaderReadOnlyOptimal, all recorded through cb's tracked API so the
// copy/transition barriers are generated by the same engine every other
// command-buffer operation goes through, rather than hand-written ones.
// Submits cb synchronously on queue and waits for completion, matching
// the one-shot upload idiom StageImageResource/TransitionImageLayout
// used to perform by hand against a bare CommandBuffer.
func (p *ImageResourcePool) StageTextureFromImage(srcImg *image.RGBA, cb *SyncCommandBuffer, queue *Queue) (*ImageResource, error) {
	b := srcImg.Bounds()

	var extent vk.Extent2D
	extent.Width = uint32(b.Dx())
	extent.Height = uint32(b.Dy())

	img, err := p.AllocateImage(extent, vk.FormatR8g8b8a8Unorm, vk.ImageTilingOptimal, vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit)
	if err != nil {
		return nil, err
	}

	if err := img.AllocateStagingResource(); err != nil {
		return nil, err
	}
	defer img.FreeStagingResource()

	if _, err := img.StagingResource.ResourcePool.Memory.Map(); err != nil {
		return nil, err
	}

	const c = 0x7fffffff
	mbytes := (*[c]byte)(unsafe.Pointer(&srcImg.Pix[0]))[:len(srcImg.Pix)]

	srb := img.StagingResource.Bytes()
	if srb == nil {
		return nil, fmt.Errorf("unable to map bytes for image data, make sure staging buffer has been mapped")
	}
	copy(srb, mbytes)

	if err := cb.Begin(); err != nil {
		return nil, err
	}

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	cb.CopyBufferToImage(img.StagingResource.Handle, img.StagingResource.VKBuffer, img.Handle, img.VKImage,
		vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1, []vk.BufferImageCopy{region})
	cb.TransformLayout(img.Handle, img.VKImage, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1, 1, vk.ImageLayoutShaderReadOnlyOptimal)

	if err := cb.End(); err != nil {
		return nil, err
	}

	f, err := p.Device.CreateFence()
	if err != nil {
		return nil, err
	}
	defer f.Destroy()

	if err := queue.SubmitWithFence(f, cb.primary); err != nil {
		return nil, err
	}
	cb.NotifySubmitted()

	if err := p.Device.WaitForFences(true, 100*time.Second, f); err != nil {
		return nil, err
	}
	cb.NotifyFenceSignaled()
	if err := cb.Reset(); err != nil {
		return nil, err
	}

	return img, nil
}
