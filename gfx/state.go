package gfx

// FrameState is the position of a System inside the frame protocol
type FrameState int

// Frame states
const (
	Idle FrameState = iota
	InFrame
	In3DPass
	In2DPass
)

func (s FrameState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case InFrame:
		return "InFrame"
	case In3DPass:
		return "In3DPass"
	case In2DPass:
		return "In2DPass"
	default:
		return "Unknown"
	}
}

type frameOp int

const (
	opBeginFrame frameOp = iota
	opBegin3D
	opBegin2D
	opRender
	opRenderSprite
	opRenderLines
	opEndFrame
)

var opNames = [...]string{
	opBeginFrame:   "BeginFrame",
	opBegin3D:      "Begin3D",
	opBegin2D:      "Begin2D",
	opRender:       "Render",
	opRenderSprite: "RenderSprite",
	opRenderLines:  "RenderLines",
	opEndFrame:     "EndFrame",
}

// transitions lists for every operation the states it is legal in and
// the state it leaves behind. Submissions do not change the state.
var transitions = map[frameOp]map[FrameState]FrameState{
	opBeginFrame: {
		Idle: InFrame,
	},
	opBegin3D: {
		InFrame: In3DPass,
	},
	opBegin2D: {
		InFrame:  In2DPass,
		In3DPass: In2DPass,
	},
	opRender: {
		InFrame:  InFrame,
		In3DPass: In3DPass,
	},
	opRenderSprite: {
		InFrame:  InFrame,
		In2DPass: In2DPass,
	},
	opRenderLines: {
		InFrame:  InFrame,
		In3DPass: In3DPass,
	},
	opEndFrame: {
		InFrame:  Idle,
		In3DPass: Idle,
		In2DPass: Idle,
	},
}

// next returns the state after op, or false if op is illegal in s
func next(s FrameState, op frameOp) (FrameState, bool) {
	to, ok := transitions[op][s]
	return to, ok
}
