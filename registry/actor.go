package registry

import (
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/core"
)

// Entity is a world object a renderable is attached to. The registry
// does not own entities, it only reads them while rendering.
type Entity interface {
	Name() core.HashedName
	Transform() glm.Mat4
	IsMarkedForDeath() bool
}

// NewActor creates an actor at the origin with unit scale
func NewActor(name string) *Actor {
	return &Actor{
		name:     core.NewHashedName(name),
		rotation: glm.QuatIdent(),
		scale:    glm.Vec3{1, 1, 1},
	}
}

// Actor is a basic Entity with a position, rotation and scale
type Actor struct {
	name     core.HashedName
	position glm.Vec3
	rotation glm.Quat
	scale    glm.Vec3
	dead     bool
}

// Name implements Entity
func (a *Actor) Name() core.HashedName { return a.name }

// Position of the actor in world space
func (a *Actor) Position() glm.Vec3 { return a.position }

// SetPosition moves the actor
func (a *Actor) SetPosition(p glm.Vec3) { a.position = p }

// Move adds d to the position
func (a *Actor) Move(d glm.Vec3) { a.position = a.position.Add(d) }

// SetRotation sets the orientation
func (a *Actor) SetRotation(q glm.Quat) { a.rotation = q.Normalize() }

// Rotate turns the actor by angle radians around axis
func (a *Actor) Rotate(angle float32, axis glm.Vec3) {
	a.rotation = glm.QuatRotate(angle, axis.Normalize()).Mul(a.rotation).Normalize()
}

// SetScale sets the scale along each axis
func (a *Actor) SetScale(s glm.Vec3) { a.scale = s }

// Transform implements Entity, scale is applied first and
// translation last
func (a *Actor) Transform() glm.Mat4 {
	return glm.Translate3D(a.position.X(), a.position.Y(), a.position.Z()).
		Mul4(a.rotation.Mat4()).
		Mul4(glm.Scale3D(a.scale.X(), a.scale.Y(), a.scale.Z()))
}

// MarkForDeath flags the actor for removal, its renderable is
// dropped before the next frame is drawn
func (a *Actor) MarkForDeath() { a.dead = true }

// IsMarkedForDeath implements Entity
func (a *Actor) IsMarkedForDeath() bool { return a.dead }
