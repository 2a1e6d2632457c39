// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"errors"
	"math"
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/model"
)

// Clear waits for the previous frame, acquires the next swapchain
// image and begins the render pass clearing it to color
func (b *Backend) Clear(color glm.Vec4) error {
	if b.device == nil {
		return gfx.ErrDeviceLost
	}
	if b.inFrame {
		return errors.New("vulkan: frame already begun")
	}
	if b.outdated {
		if err := b.recreateSwapchain(); err != nil {
			return err
		}
		if b.outdated {
			return gfx.ErrDeviceLost
		}
	}

	fences := []vk.Fence{b.imageFence}
	if err := vk.Error(vk.WaitForFences(b.device, 1, fences, vk.True, math.MaxUint64)); err != nil {
		return b.lost("vk.WaitForFences(): ", err)
	}
	b.freePending()

	result := vk.AcquireNextImage(b.device, b.swapchain, math.MaxUint64, b.imageAvailable, nil, &b.imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		if err := b.recreateSwapchain(); err != nil {
			return err
		}
		return gfx.ErrDeviceLost
	default:
		return b.lost("vk.AcquireNextImage(): ", vk.Error(result))
	}

	// reset only once a submit is certain to signal it again
	vk.ResetFences(b.device, 1, fences)

	cmd := b.commandBuffers[b.imageIndex]
	vk.ResetCommandBuffer(cmd, 0)
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return b.lost("vk.BeginCommandBuffer(): ", err)
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clearColor(color))
	clearValues[1].SetDepthStencil(1, 0)

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  b.renderPass,
		Framebuffer: b.framebuffers[b.imageIndex],
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{
				Width:  b.width,
				Height: b.height,
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cmd, &rpbi, vk.SubpassContentsInline)
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{b.viewport})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{b.scissor})

	b.bound = nil
	b.inFrame = true
	return nil
}

// lost turns device loss into gfx.ErrDeviceLost, other failures
// keep their Vulkan message
func (b *Backend) lost(call string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, vk.Error(vk.ErrorDeviceLost)) {
		b.log.WithError(err).Error("vulkan device lost")
		return gfx.ErrDeviceLost
	}
	return errors.New(call + err.Error())
}

func (b *Backend) bind(cmd vk.CommandBuffer, p *pipeline, t *texture) {
	if b.bound != p.pipeline {
		vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p.pipeline)
		b.bound = p.pipeline
	}
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, b.pipelineLayout, 0, 1, []vk.DescriptorSet{t.set}, 0, nil)
}

func (b *Backend) push(cmd vk.CommandBuffer, pc pushConstant) {
	vk.CmdPushConstants(cmd, b.pipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
		0, pushConstantSize, unsafe.Pointer(&pc))
}

// Submit records a mesh draw into the current frame. Draws with an
// unknown vertex buffer are dropped.
func (b *Backend) Submit(call gfx.DrawCall) {
	if !b.inFrame {
		return
	}
	vertices := b.buffer(call.VertexBuffer)
	if vertices == nil {
		b.log.WithField("handle", call.VertexBuffer).Debug("draw without vertex buffer dropped")
		return
	}
	cmd := b.commandBuffers[b.imageIndex]

	b.bind(cmd, b.material(call.Material), b.texture(call.Texture))
	b.push(cmd, meshConstants(call))
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{vertices.buffer}, []vk.DeviceSize{0})

	if indices := b.buffer(call.IndexBuffer); indices != nil && call.IndexCount > 0 {
		vk.CmdBindIndexBuffer(cmd, indices.buffer, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(cmd, call.IndexCount, 1, 0, 0, 0)
		return
	}
	vk.CmdDraw(cmd, call.VertexCount, 1, 0, 0)
}

// SubmitSprite records a textured screen quad
func (b *Backend) SubmitSprite(call gfx.SpriteCall) {
	if !b.inFrame {
		return
	}
	cmd := b.commandBuffers[b.imageIndex]
	t := b.texture(call.Texture)

	b.bind(cmd, b.spritePipeline, t)
	b.push(cmd, spriteConstants(call, t.size))
	vk.CmdDraw(cmd, 6, 1, 0, 0)
}

// SubmitLines copies the line vertices into their buffer and draws
// them as a line list. Vertices beyond the buffer are dropped.
func (b *Backend) SubmitLines(call gfx.LineCall) {
	if !b.inFrame {
		return
	}
	buf := b.buffer(call.Buffer)
	if buf == nil {
		b.log.WithField("handle", call.Buffer).Debug("lines without buffer dropped")
		return
	}
	vertices := call.Vertices
	if uint32(len(vertices)) > buf.count {
		vertices = vertices[:buf.count]
	}
	if len(vertices) == 0 {
		return
	}

	b.lineScratch = model.AppendVertices(b.lineScratch[:0], vertices)
	if err := buf.memory.write(b.lineScratch); err != nil {
		b.log.WithError(err).Warn("line upload failed")
		return
	}

	cmd := b.commandBuffers[b.imageIndex]
	b.bind(cmd, b.linePipeline, b.white)
	b.push(cmd, lineConstants(call))
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{buf.buffer}, []vk.DeviceSize{0})
	vk.CmdDraw(cmd, uint32(len(vertices)), 1, 0, 0)
}

// Present submits the recorded frame and queues the image for display.
// An outdated swapchain is recreated and the frame reported lost.
func (b *Backend) Present() error {
	if !b.inFrame {
		return errors.New("vulkan: present without a frame")
	}
	b.inFrame = false
	cmd := b.commandBuffers[b.imageIndex]

	vk.CmdEndRenderPass(cmd)
	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return b.lost("vk.EndCommandBuffer(): ", err)
	}

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{b.imageAvailable},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.renderFinished},
	}}
	if err := vk.Error(vk.QueueSubmit(b.queue, 1, submit, b.imageFence)); err != nil {
		return b.lost("vk.QueueSubmit(): ", err)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{b.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{b.swapchain},
		PImageIndices:      []uint32{b.imageIndex},
	}

	switch result := vk.QueuePresent(b.queue, &presentInfo); result {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		// presented, the next frame gets a fitting swapchain
		return b.recreateSwapchain()
	case vk.ErrorOutOfDate:
		if err := b.recreateSwapchain(); err != nil {
			return err
		}
		return gfx.ErrDeviceLost
	default:
		return b.lost("vk.QueuePresent(): ", vk.Error(result))
	}
}
