package collision

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/spatialmath"
)

var nextObjectID atomic.Uint64

// Object is a shape placed in the world. The shape is fixed for the object's lifetime; the pose
// may change, and the world bounds are recomputed whenever it does. Objects are safe for
// concurrent use.
type Object struct {
	id    uint64
	shape geometry.Shape

	// version counts pose changes so an engine can tell when its broad phase bounds are stale
	version atomic.Uint64

	mu       sync.RWMutex
	pose     spatialmath.Pose
	aabb     spatialmath.AABB
	userData interface{}
}

// NewObject places shape at pose. A nil pose is allowed, but any query on the object fails with
// ErrInvalidQuery until a pose is set.
func NewObject(shape geometry.Shape, pose spatialmath.Pose) *Object {
	o := &Object{id: nextObjectID.Inc(), shape: shape}
	o.setPose(pose)
	return o
}

// ID returns an identifier unique to this object within the process.
func (o *Object) ID() uint64 {
	return o.id
}

// Shape returns the object's shape.
func (o *Object) Shape() geometry.Shape {
	return o.shape
}

// Pose returns the object's current pose, or nil if it has none.
func (o *Object) Pose() spatialmath.Pose {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pose
}

// SetPose moves the object. An engine tracking the object refreshes its bounds before the next
// broad phase query.
func (o *Object) SetPose(pose spatialmath.Pose) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setPose(pose)
}

func (o *Object) setPose(pose spatialmath.Pose) {
	defer o.version.Inc()
	o.pose = pose
	if pose == nil {
		o.aabb = spatialmath.EmptyAABB()
		return
	}
	o.aabb = o.shape.LocalAABB().Transform(pose)
}

// AABB returns the world-space bounds of the object at its current pose. An object with no pose
// has empty bounds.
func (o *Object) AABB() spatialmath.AABB {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.aabb
}

// SetUserData attaches arbitrary caller data to the object.
func (o *Object) SetUserData(data interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.userData = data
}

// UserData returns the data attached with SetUserData.
func (o *Object) UserData() interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.userData
}

func (o *Object) String() string {
	return fmt.Sprintf("object %d: %s", o.id, o.shape.Kind())
}
