// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"errors"
	"fmt"
	"math"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

const depthFormat = vk.FormatD16Unorm

// errZeroExtent is returned while the window is minimized
var errZeroExtent = errors.New("surface has a zero extent")

func (b *Backend) createSwapchain(oldSwapchain vk.Swapchain) error {
	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(b.physicalDevice, b.surface, &caps)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	// the surface dictates the size unless it reports the special value
	if caps.CurrentExtent.Width != math.MaxUint32 {
		b.width = caps.CurrentExtent.Width
		b.height = caps.CurrentExtent.Height
	}
	if b.width == 0 || b.height == 0 {
		return errZeroExtent
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         b.surface,
		MinImageCount:   swapchainImageCount(b.opts.SwapchainSize, caps.MinImageCount, caps.MaxImageCount),
		ImageFormat:     b.imageFormat,
		ImageColorSpace: b.imageColorspace,
		ImageExtent: vk.Extent2D{
			Width:  b.width,
			Height: b.height,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(b.device, &scci, nil, &swapchain)); err != nil {
		return errors.New("vk.CreateSwapchain(): " + err.Error())
	}
	if oldSwapchain != nil {
		vk.DestroySwapchain(b.device, oldSwapchain, nil)
	}
	b.swapchain = swapchain

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(b.device, b.swapchain, &numImages, nil)); err != nil {
		return errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}
	b.swapchainImages = make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(b.device, b.swapchain, &numImages, b.swapchainImages)); err != nil {
		return errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}

	b.viewport = vk.Viewport{
		Width:    float32(b.width),
		Height:   float32(b.height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	b.scissor = vk.Rect2D{
		Extent: vk.Extent2D{
			Width:  b.width,
			Height: b.height,
		},
	}
	return nil
}

func (b *Backend) createImageViews() error {
	b.swapchainImageViews = b.swapchainImageViews[:0]
	for idx, img := range b.swapchainImages {
		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   b.imageFormat,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}

		var imageView vk.ImageView
		if err := vk.Error(vk.CreateImageView(b.device, &ivci, nil, &imageView)); err != nil {
			return fmt.Errorf("vk.CreateImageView()[%d]: %s", idx, err.Error())
		}
		b.swapchainImageViews = append(b.swapchainImageViews, imageView)
	}
	return nil
}

func (b *Backend) prepareDepthImage() error {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    depthFormat,
		Extent: vk.Extent3D{
			Width:  b.width,
			Height: b.height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	}
	if err := vk.Error(vk.CreateImage(b.device, &ici, nil, &b.depthImage)); err != nil {
		return fmt.Errorf("vk.CreateImage(depth): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.device, b.depthImage, &req)
	req.Deref()

	mem, err := b.allocator.malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return err
	}
	b.depthMemory = mem

	if err := vk.Error(vk.BindImageMemory(b.device, b.depthImage, mem.memory, 0)); err != nil {
		return fmt.Errorf("vk.BindImageMemory(depth): %s", err.Error())
	}

	ivci := vk.ImageViewCreateInfo{
		SType:  vk.StructureTypeImageViewCreateInfo,
		Format: depthFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			LevelCount: 1,
			LayerCount: 1,
		},
		ViewType: vk.ImageViewType2d,
		Image:    b.depthImage,
	}
	if err := vk.Error(vk.CreateImageView(b.device, &ivci, nil, &b.depthImageView)); err != nil {
		return fmt.Errorf("vk.CreateImageView(depth): %s", err.Error())
	}
	return nil
}

func (b *Backend) createRenderPass() error {
	attachments := []vk.AttachmentDescription{{
		Format:         b.imageFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}, {
		Format:         depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorAttachmentRef)),
		PColorAttachments:       colorAttachmentRef,
		PDepthStencilAttachment: &depthAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}
	if err := vk.Error(vk.CreateRenderPass(b.device, &rpci, nil, &b.renderPass)); err != nil {
		return errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	return nil
}

func (b *Backend) createFramebuffers() error {
	b.framebuffers = b.framebuffers[:0]
	for _, view := range b.swapchainImageViews {
		attachments := []vk.ImageView{view, b.depthImageView}
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      b.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           b.width,
			Height:          b.height,
			Layers:          1,
		}

		var framebuffer vk.Framebuffer
		if err := vk.Error(vk.CreateFramebuffer(b.device, &fci, nil, &framebuffer)); err != nil {
			return errors.New("vk.CreateFramebuffer(): " + err.Error())
		}
		b.framebuffers = append(b.framebuffers, framebuffer)
	}
	return nil
}

func (b *Backend) allocateCommandBuffers() error {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(len(b.swapchainImageViews)),
	}

	b.commandBuffers = make([]vk.CommandBuffer, len(b.swapchainImageViews))
	if err := vk.Error(vk.AllocateCommandBuffers(b.device, &cbai, b.commandBuffers)); err != nil {
		return errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}
	return nil
}

// buildSwapchain creates everything sized by the surface
func (b *Backend) buildSwapchain(old vk.Swapchain) error {
	if err := b.createSwapchain(old); err != nil {
		return err
	}
	if err := b.createImageViews(); err != nil {
		return err
	}
	if err := b.prepareDepthImage(); err != nil {
		return err
	}
	if err := b.createFramebuffers(); err != nil {
		return err
	}
	return b.allocateCommandBuffers()
}

// destroySwapchainResources frees what buildSwapchain created,
// except the swapchain itself which is handed to the next one
func (b *Backend) destroySwapchainResources() {
	if len(b.commandBuffers) > 0 {
		vk.FreeCommandBuffers(b.device, b.commandPool, uint32(len(b.commandBuffers)), b.commandBuffers)
		b.commandBuffers = nil
	}
	for _, fb := range b.framebuffers {
		vk.DestroyFramebuffer(b.device, fb, nil)
	}
	b.framebuffers = b.framebuffers[:0]

	for _, iv := range b.swapchainImageViews {
		vk.DestroyImageView(b.device, iv, nil)
	}
	b.swapchainImageViews = b.swapchainImageViews[:0]
	// swapchain images belong to the swapchain
	b.swapchainImages = nil

	if b.depthImage != nil {
		vk.DestroyImageView(b.device, b.depthImageView, nil)
		vk.DestroyImage(b.device, b.depthImage, nil)
		b.depthMemory.release()
		b.depthImageView, b.depthImage = nil, nil
		b.depthMemory = memory{}
	}
}

// recreateSwapchain follows a resized or otherwise outdated surface.
// The pipelines survive, viewport and scissor are dynamic.
func (b *Backend) recreateSwapchain() error {
	vk.DeviceWaitIdle(b.device)
	b.destroySwapchainResources()

	if err := b.buildSwapchain(b.swapchain); err != nil {
		b.outdated = true
		if errors.Is(err, errZeroExtent) {
			b.log.Debug("surface minimized, swapchain not recreated")
			return nil
		}
		return err
	}
	b.outdated = false

	b.log.WithFields(log.Fields{
		"width":  b.width,
		"height": b.height,
		"images": len(b.swapchainImages),
	}).Debug("swapchain recreated")
	return nil
}
