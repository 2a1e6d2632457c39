// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/model"
)

// Default programs looked up in the shader source
const (
	MeshVertexShader     = "mesh.vert.spv"
	MeshFragmentShader   = "mesh.frag.spv"
	SpriteVertexShader   = "sprite.vert.spv"
	SpriteFragmentShader = "sprite.frag.spv"
)

// pipelineKind selects the fixed function state of a pipeline
type pipelineKind int

const (
	meshPipeline pipelineKind = iota
	spritePipeline
	linePipeline
)

// pipeline is a graphics pipeline with the shader modules it was built from
type pipeline struct {
	device   vk.Device
	pipeline vk.Pipeline
	modules  []vk.ShaderModule
}

func (p *pipeline) release() {
	vk.DestroyPipeline(p.device, p.pipeline, nil)
	for _, m := range p.modules {
		vk.DestroyShaderModule(p.device, m, nil)
	}
}

func (b *Backend) createShaderModule(code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V code of %d bytes", len(code))
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    core.SliceUint32(code),
	}

	var shader vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(b.device, &smci, nil, &shader)); err != nil {
		return nil, fmt.Errorf("vk.CreateShaderModule(): %s", err.Error())
	}
	return shader, nil
}

// createDescriptorSetLayout declares the texture every draw samples
func (b *Backend) createDescriptorSetLayout() error {
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if err := vk.Error(vk.CreateDescriptorSetLayout(b.device, &dslci, nil, &b.descriptorSetLayout)); err != nil {
		return errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
	}
	return nil
}

func (b *Backend) createPipelineLayout() error {
	pcr := []vk.PushConstantRange{{
		Offset:     0,
		Size:       pushConstantSize,
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}}

	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{b.descriptorSetLayout},
		PushConstantRangeCount: uint32(len(pcr)),
		PPushConstantRanges:    pcr,
	}
	if err := vk.Error(vk.CreatePipelineLayout(b.device, &plci, nil, &b.pipelineLayout)); err != nil {
		return errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}
	return nil
}

func (b *Backend) createPipelineCache() error {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if err := vk.Error(vk.CreatePipelineCache(b.device, &pcci, nil, &b.pipelineCache)); err != nil {
		return errors.New("vk.CreatePipelineCache(): " + err.Error())
	}
	return nil
}

func (b *Backend) createDescriptorPool() error {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: maxTextures,
	}}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxTextures,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if err := vk.Error(vk.CreateDescriptorPool(b.device, &dpci, nil, &b.descriptorPool)); err != nil {
		return errors.New("vk.CreateDescriptorPool(): " + err.Error())
	}
	return nil
}

// newPipeline builds a pipeline from SPIR-V code. The modules are owned
// by the returned pipeline.
func (b *Backend) newPipeline(kind pipelineKind, vertexCode, fragmentCode []byte) (*pipeline, error) {
	p := &pipeline{device: b.device}
	for _, code := range [][]byte{vertexCode, fragmentCode} {
		m, err := b.createShaderModule(code)
		if err != nil {
			p.release()
			return nil, err
		}
		p.modules = append(p.modules, m)
	}

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: p.modules[0],
		PName:  core.SafeString("main"),
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: p.modules[1],
		PName:  core.SafeString("main"),
	}}

	vertexInputState := &vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	depth := vk.Bool32(vk.True)
	blend := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: 0xF,
		BlendEnable:    vk.False,
	}
	// no culling, the raster backend fills both faces as well
	cull := vk.CullModeFlags(vk.CullModeNone)
	topology := vk.PrimitiveTopologyTriangleList

	switch kind {
	case meshPipeline, linePipeline:
		if kind == linePipeline {
			topology = vk.PrimitiveTopologyLineList
		}
		bindings, attributes := vertexInput(model.DefaultLayout)
		vertexInputState.VertexBindingDescriptionCount = uint32(len(bindings))
		vertexInputState.PVertexBindingDescriptions = bindings
		vertexInputState.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInputState.PVertexAttributeDescriptions = attributes
	case spritePipeline:
		// the quad is generated in the vertex shader, drawn over the scene
		depth = vk.False
		blend = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask:      0xF,
			BlendEnable:         vk.True,
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
		}
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: vertexInputState,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: topology,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    cull,
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       depth,
			DepthWriteEnable:      depth,
			DepthCompareOp:        vk.CompareOpLessOrEqual,
			DepthBoundsTestEnable: vk.False,
			StencilTestEnable:     vk.False,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments:    []vk.PipelineColorBlendAttachmentState{blend},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     b.pipelineLayout,
		RenderPass: b.renderPass,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(b.device, b.pipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		p.release()
		return nil, errors.New("vk.CreateGraphicsPipelines(): " + err.Error())
	}
	p.pipeline = pipelines[0]
	return p, nil
}

// loadDefaultPipelines builds the mesh, sprite and line programs
// shipped in the shader source. Lines run the mesh shaders.
func (b *Backend) loadDefaultPipelines() error {
	load := func(kind pipelineKind, vert, frag string) (*pipeline, error) {
		vertexCode, err := b.shaders.ReadFile(vert)
		if err != nil {
			return nil, fmt.Errorf("load shader %s: %w", vert, err)
		}
		fragmentCode, err := b.shaders.ReadFile(frag)
		if err != nil {
			return nil, fmt.Errorf("load shader %s: %w", frag, err)
		}
		return b.newPipeline(kind, vertexCode, fragmentCode)
	}

	var err error
	if b.meshPipeline, err = load(meshPipeline, MeshVertexShader, MeshFragmentShader); err != nil {
		return err
	}
	if b.spritePipeline, err = load(spritePipeline, SpriteVertexShader, SpriteFragmentShader); err != nil {
		return err
	}
	if b.linePipeline, err = load(linePipeline, MeshVertexShader, MeshFragmentShader); err != nil {
		return err
	}
	return nil
}
