package vcomp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TransformationKind tags a transformation variant. The registry builds one
// effect pipeline per kind.
type TransformationKind uint8

// Transformation kinds.
const (
	TransformationCropping TransformationKind = iota + 1
	TransformationCornersRounding
)

// transformationKinds lists every kind the registry must provide.
var transformationKinds = []TransformationKind{
	TransformationCropping,
	TransformationCornersRounding,
}

// String implements fmt.Stringer.
func (k TransformationKind) String() string {
	switch k {
	case TransformationCropping:
		return "cropping"
	case TransformationCornersRounding:
		return "corners-rounding"
	default:
		return fmt.Sprintf("TransformationKind(%d)", uint8(k))
	}
}

// Transformation is one stage of a stream's transformation chain.
//
// A chain is applied in order: each stage receives the properties produced
// by the previous one. Transform reports the geometric effect of the stage
// and Params encodes the parameters of its effect pipeline for the
// properties the stage receives.
//
// The set of transformations is closed; see Cropping and CornersRounding.
type Transformation interface {
	Kind() TransformationKind
	Transform(in VideoProperties) VideoProperties
	Params(in VideoProperties) []byte
	Validate() error

	transformation()
}

// stage is a chain entry resolved against concrete properties.
type stage struct {
	kind   TransformationKind
	in     VideoProperties
	out    VideoProperties
	params []byte
}

// resolveChain computes the properties after the whole chain and the
// resolved stages. Params are computed after the geometry pass, each from
// the properties its stage receives.
func resolveChain(base VideoProperties, chain []Transformation) (VideoProperties, []stage) {
	if len(chain) == 0 {
		return base, nil
	}
	stages := make([]stage, len(chain))
	props := base
	for i, t := range chain {
		stages[i].kind = t.Kind()
		stages[i].in = props
		props = t.Transform(props)
		stages[i].out = props
	}
	for i, t := range chain {
		stages[i].params = t.Params(stages[i].in)
	}
	return props, stages
}

// validateChain reports the first invalid transformation of chain.
func validateChain(chain []Transformation) error {
	for i, t := range chain {
		if t == nil {
			return fmt.Errorf("%w: stage %d is nil", ErrInvalidTransformation, i)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("stage %d (%v): %w", i, t.Kind(), err)
		}
	}
	return nil
}

// paramsSize is the size of every parameter blob: one 16-byte uniform block.
const paramsSize = 16

// encodeParams packs up to four values as little-endian f32, zero padded.
func encodeParams(values ...float32) []byte {
	buf := make([]byte, paramsSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeParams unpacks a blob produced by encodeParams.
func decodeParams(buf []byte) [4]float32 {
	var out [4]float32
	for i := range out {
		if len(buf) < (i+1)*4 {
			break
		}
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
