// Command ffinfo prints JSON descriptions of the Vulkan physical
// devices, or of a mesh or material resource.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/assets"
	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/device"
	"github.com/devblok/frameforge/model"
	"github.com/devblok/frameforge/resource"
)

var (
	mesh     = flag.String("mesh", "", "Describe the given mesh instead of the devices")
	material = flag.String("material", "", "Describe the given material instead of the devices")
	dir      = flag.String("dir", "./assets", "Resource directory, built-in assets are used as fallback")
	debug    = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
)

func main() {
	flag.Parse()

	src := resource.Chain{resource.Dir(*dir), resource.NewBox(*assets.Builtin())}

	var (
		v   any
		err error
	)
	switch {
	case *mesh != "":
		v, err = describeMesh(src, *mesh)
	case *material != "":
		v, err = describeMaterial(src, *material)
	default:
		v, err = describeDevices(*debug)
	}
	if err == nil {
		err = write(os.Stdout, v)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func write(w io.Writer, v any) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", bytes)
	return err
}

func describeDevices(debug bool) ([]device.PhysicalDeviceInfo, error) {
	instance, err := device.NewInstance(device.DefaultApplicationInfo, nil, device.Configuration{DebugMode: debug}, nil)
	if err != nil {
		return nil, err
	}
	defer instance.Destroy()
	return instance.PhysicalDevicesInfo(), nil
}

type meshDescription struct {
	Name           string         `json:"name"`
	VertexCount    uint32         `json:"vertexCount"`
	IndexCount     uint32         `json:"indexCount"`
	PrimitiveCount uint32         `json:"primitiveCount"`
	Stride         uint32         `json:"stride"`
	Vertices       []model.Vertex `json:"vertices"`
	Indices        []uint32       `json:"indices"`
}

func describeMesh(src resource.Source, path string) (meshDescription, error) {
	data, err := src.ReadFile(path)
	if err != nil {
		return meshDescription{}, err
	}
	info, err := model.ParseDrawInfo(path, data)
	if err != nil {
		return meshDescription{}, err
	}
	return meshDescription{
		Name:           core.NewHashedName(path).String(),
		VertexCount:    info.VertexCount,
		IndexCount:     info.IndexCount,
		PrimitiveCount: info.PrimitiveCount,
		Stride:         info.Layout.Stride,
		Vertices:       info.Vertices(),
		Indices:        info.Indices(),
	}, nil
}

func describeMaterial(src resource.Source, path string) (*model.MaterialInfo, error) {
	data, err := src.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return model.ParseMaterialInfo(path, data)
}
