package vcomp

import (
	"fmt"

	"github.com/gogpu/vcomp/backend"
)

// effectDescriptor returns the pipeline description of a transformation
// kind, or false for an unknown kind.
func effectDescriptor(kind TransformationKind) (backend.EffectDescriptor, bool) {
	switch kind {
	case TransformationCropping:
		return backend.EffectDescriptor{
			Label:  "vcomp_cropping",
			Shader: croppingShaderSource,
			Kernel: cropKernel,
		}, true
	case TransformationCornersRounding:
		return backend.EffectDescriptor{
			Label:  "vcomp_corners_rounding",
			Shader: cornersRoundingShaderSource,
			Kernel: roundCornersKernel,
		}, true
	default:
		return backend.EffectDescriptor{}, false
	}
}

// registry maps each transformation kind to its effect pipeline. It is
// built once per compositor and shared read-only by all streams.
type registry struct {
	pipelines map[TransformationKind]backend.EffectPipeline
}

// newRegistry builds the pipelines of kinds on dev.
func newRegistry(dev backend.Device, kinds []TransformationKind) (*registry, error) {
	r := &registry{pipelines: make(map[TransformationKind]backend.EffectPipeline, len(kinds))}
	for _, kind := range kinds {
		desc, ok := effectDescriptor(kind)
		if !ok {
			r.release()
			return nil, fmt.Errorf("vcomp: no effect for transformation %v", kind)
		}
		p, err := dev.NewEffectPipeline(desc)
		if err != nil {
			r.release()
			return nil, fmt.Errorf("vcomp: build %v pipeline: %w", kind, err)
		}
		r.pipelines[kind] = p
	}
	return r, nil
}

// pipeline returns the pipeline of kind. An unregistered kind is a
// programming error and panics.
func (r *registry) pipeline(kind TransformationKind) backend.EffectPipeline {
	p, ok := r.pipelines[kind]
	if !ok {
		panic(fmt.Sprintf("vcomp: transformation %v is not registered", kind))
	}
	return p
}

func (r *registry) release() {
	for kind, p := range r.pipelines {
		p.Release()
		delete(r.pipelines, kind)
	}
}
