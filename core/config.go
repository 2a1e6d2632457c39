package core

import glm "github.com/go-gl/mathgl/mgl32"

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time      TimeConfiguration
	Graphics  GraphicsConfiguration
	Registry  RegistryConfiguration
	Resources ResourceConfiguration
	Logging   LoggingConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay between polling
	// window events, in milliseconds
	EventPollDelay int
}

// GraphicsConfiguration is used to configure the graphics device
// and the frame it renders into
type GraphicsConfiguration struct {
	ScreenWidth  uint32
	ScreenHeight uint32
	Fullscreen   bool
	Antialiasing bool

	// ClearColor is used when a frame is begun without
	// an explicit color
	ClearColor glm.Vec4

	// SwapchainSize and DeviceExtensions are only used by the Vulkan backend
	SwapchainSize    uint32
	DeviceExtensions []string

	// ShaderDirectory holds compiled default shaders (*.vert.spv, *.frag.spv)
	ShaderDirectory string
}

// RegistryConfiguration sets the capacities of the renderable pools
type RegistryConfiguration struct {
	Max3DObjects     int
	MaxSpriteObjects int
}

// ResourceConfiguration describes where resource files are looked up.
// Sources are tried in order: archives, then the directory, then built-in assets.
type ResourceConfiguration struct {
	Directory string
	Archives  []string
	Builtin   bool
}

// LoggingConfiguration configures the logger built by NewLogger
type LoggingConfiguration struct {
	Level  string
	Format string
}

// Default sizes, mirrored by the settings loader
const (
	DefaultScreenWidth  = 640
	DefaultScreenHeight = 480

	DefaultMax3DObjects     = 100
	DefaultMaxSpriteObjects = 100
)

// DefaultConfiguration returns a configuration that can run
// without any settings file present
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventPollDelay:  5,
		},
		Graphics: GraphicsConfiguration{
			ScreenWidth:      DefaultScreenWidth,
			ScreenHeight:     DefaultScreenHeight,
			ClearColor:       glm.Vec4{0, 0, 0, 0},
			SwapchainSize:    3,
			DeviceExtensions: []string{"VK_KHR_swapchain"},
			ShaderDirectory:  "./shaders",
		},
		Registry: RegistryConfiguration{
			Max3DObjects:     DefaultMax3DObjects,
			MaxSpriteObjects: DefaultMaxSpriteObjects,
		},
		Resources: ResourceConfiguration{
			Directory: "./assets",
			Builtin:   true,
		},
		Logging: LoggingConfiguration{
			Level:  "info",
			Format: "text",
		},
	}
}
