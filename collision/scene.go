package collision

import (
	"go.viam.com/fcl/config"
	"go.viam.com/fcl/logging"
)

// SceneObject is an object loaded from a scene, with its name and the motion it sweeps.
type SceneObject struct {
	Name   string
	Object *Object
	Motion Motion
}

// LoadScene builds an engine from a scene's settings and inserts every object in it at its start
// pose. Each object's user data is its name.
func LoadScene(scene *config.Scene, logger logging.Logger) (*Engine, []SceneObject, error) {
	engine, err := NewEngine(scene.EngineConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	loaded := make([]SceneObject, 0, len(scene.Objects))
	for i := range scene.Objects {
		shape, start, end, err := scene.Objects[i].Parse(engine.MeshOptions()...)
		if err != nil {
			return nil, nil, err
		}
		obj := NewObject(shape, start)
		obj.SetUserData(scene.Objects[i].Name)
		if err := engine.Insert(obj); err != nil {
			return nil, nil, err
		}
		loaded = append(loaded, SceneObject{
			Name:   scene.Objects[i].Name,
			Object: obj,
			Motion: Motion{Start: start, End: end},
		})
	}
	return engine, loaded, nil
}
