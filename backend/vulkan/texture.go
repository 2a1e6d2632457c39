// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"fmt"
	"image"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/frameforge/core"
)

// texture is a sampled image with the descriptor set binding it
type texture struct {
	device vk.Device
	size   image.Point

	image  vk.Image
	memory memory
	view   vk.ImageView

	pool vk.DescriptorPool
	set  vk.DescriptorSet
}

func (t *texture) release() {
	if t.set != nil {
		vk.FreeDescriptorSets(t.device, t.pool, 1, &t.set)
	}
	vk.DestroyImageView(t.device, t.view, nil)
	vk.DestroyImage(t.device, t.image, nil)
	t.memory.release()
}

// uploadTexture copies img through a staging buffer into a device
// local image and binds it to a new descriptor set
func (b *Backend) uploadTexture(img image.Image) (*texture, error) {
	bounds := img.Bounds()
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty texture %v", bounds)
	}

	staging, err := b.allocator.newBuffer(core.GetPixels(img, 0), vk.BufferUsageTransferSrcBit)
	if err != nil {
		return nil, err
	}
	defer staging.release()

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vk.FormatR8g8b8a8Unorm,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}

	t := &texture{device: b.device, size: image.Pt(int(width), int(height)), pool: b.descriptorPool}
	if err := vk.Error(vk.CreateImage(b.device, &ici, nil, &t.image)); err != nil {
		return nil, fmt.Errorf("vk.CreateImage(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.device, t.image, &req)
	req.Deref()

	if t.memory, err = b.allocator.malloc(req, vk.MemoryPropertyDeviceLocalBit); err != nil {
		vk.DestroyImage(b.device, t.image, nil)
		return nil, err
	}
	if err := vk.Error(vk.BindImageMemory(b.device, t.image, t.memory.memory, 0)); err != nil {
		t.release()
		return nil, fmt.Errorf("vk.BindImageMemory(): %s", err.Error())
	}

	err = b.singleTimeCommands(func(cmd vk.CommandBuffer) {
		transitionLayout(cmd, t.image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		copyBufferToImage(cmd, staging.buffer, t.image, width, height)
		transitionLayout(cmd, t.image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		t.release()
		return nil, err
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatR8g8b8a8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	if err := vk.Error(vk.CreateImageView(b.device, &ivci, nil, &t.view)); err != nil {
		t.release()
		return nil, fmt.Errorf("vk.CreateImageView(): %s", err.Error())
	}

	if err := b.bindTexture(t); err != nil {
		t.release()
		return nil, err
	}
	return t, nil
}

func (b *Backend) bindTexture(t *texture) error {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{b.descriptorSetLayout},
	}
	if err := vk.Error(vk.AllocateDescriptorSets(b.device, &dsai, &t.set)); err != nil {
		return fmt.Errorf("vk.AllocateDescriptorSets(): %s", err.Error())
	}

	wds := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			ImageView:   t.view,
			Sampler:     b.sampler,
		}},
	}}
	vk.UpdateDescriptorSets(b.device, uint32(len(wds)), wds, 0, nil)
	return nil
}

// whiteTexture is bound by untextured draws
func (b *Backend) whiteTexture() (*texture, error) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(img.Pix, []uint8{0xff, 0xff, 0xff, 0xff})
	return b.uploadTexture(img)
}

func (b *Backend) createSampler() error {
	sci := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if err := vk.Error(vk.CreateSampler(b.device, &sci, nil, &b.sampler)); err != nil {
		return fmt.Errorf("vk.CreateSampler(): %s", err.Error())
	}
	return nil
}

// singleTimeCommands records record into a throwaway command buffer
// and waits until the queue ran it
func (b *Backend) singleTimeCommands(record func(cmd vk.CommandBuffer)) error {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        b.commandPool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(b.device, &cbai, commandBuffers)); err != nil {
		return fmt.Errorf("vk.AllocateCommandBuffers(): %s", err.Error())
	}
	defer vk.FreeCommandBuffers(b.device, b.commandPool, 1, commandBuffers)
	cmd := commandBuffers[0]

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer(): %s", err.Error())
	}

	record(cmd)

	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %s", err.Error())
	}

	si := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    commandBuffers,
	}}
	if err := vk.Error(vk.QueueSubmit(b.queue, 1, si, nil)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %s", err.Error())
	}
	if err := vk.Error(vk.QueueWaitIdle(b.queue)); err != nil {
		return fmt.Errorf("vk.QueueWaitIdle(): %s", err.Error())
	}
	return nil
}

// transitionLayout records the two layout changes a texture upload needs
func transitionLayout(cmd vk.CommandBuffer, img vk.Image, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	if from == vk.ImageLayoutUndefined {
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}

	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func copyBufferToImage(cmd vk.CommandBuffer, buf vk.Buffer, img vk.Image, width, height uint32) {
	bic := vk.BufferImageCopy{
		ImageExtent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
	}
	vk.CmdCopyBufferToImage(cmd, buf, img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{bic})
}
