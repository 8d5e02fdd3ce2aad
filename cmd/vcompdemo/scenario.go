package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/vcomp"
	"github.com/gogpu/vcomp/backend"
)

// Scenario describes an output stream and the synthetic inputs composited
// into it.
type Scenario struct {
	Width      uint32       `yaml:"width"`
	Height     uint32       `yaml:"height"`
	Framerate  Rate         `yaml:"framerate"`
	Duration   Duration     `yaml:"duration"`
	Device     string       `yaml:"device"`
	Background [4]float64   `yaml:"background"`
	Streams    []StreamSpec `yaml:"streams"`
}

// StreamSpec is one synthetic input stream.
type StreamSpec struct {
	ID         int          `yaml:"id"`
	Resolution [2]uint32    `yaml:"resolution"`
	Position   [2]int32     `yaml:"position"`
	Size       [2]uint32    `yaml:"size"`
	Z          float32      `yaml:"z"`
	Color      [3]uint8     `yaml:"color"`
	Framerate  Rate         `yaml:"framerate"`
	Start      Duration     `yaml:"start"`
	End        Duration     `yaml:"end"`
	Crop       *CropSpec    `yaml:"crop"`
	Radius     float32      `yaml:"corner_radius"`
	Updates    []UpdateSpec `yaml:"updates"`
}

// CropSpec configures a vcomp.Cropping stage.
type CropSpec struct {
	TopLeft           [2]float32 `yaml:"top_left"`
	Size              [2]float32 `yaml:"size"`
	TransformPosition bool       `yaml:"transform_position"`
}

// UpdateSpec moves a stream at a point of the output timeline.
type UpdateSpec struct {
	At       Duration  `yaml:"at"`
	Position [2]int32  `yaml:"position"`
	Size     [2]uint32 `yaml:"size"`
	Z        float32   `yaml:"z"`
}

// Rate is a frame rate written as "num/den" or a plain integer.
type Rate vcomp.Rational

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Rate) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		den = "1"
	}
	n, err := strconv.ParseUint(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: framerate %q: %w", node.Line, s, err)
	}
	d, err := strconv.ParseUint(strings.TrimSpace(den), 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: framerate %q: %w", node.Line, s, err)
	}
	*r = Rate{Num: n, Den: d}
	return nil
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Nanos returns the duration in nanoseconds.
func (d Duration) Nanos() uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d)
}

var errScenario = errors.New("invalid scenario")

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario and fills defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	sc := &Scenario{
		Framerate:  Rate{Num: 30, Den: 1},
		Duration:   Duration(time.Second),
		Background: [4]float64{0, 0, 0, 1},
	}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, err
	}
	if sc.Width == 0 || sc.Height == 0 {
		return nil, fmt.Errorf("%w: output size %dx%d", errScenario, sc.Width, sc.Height)
	}
	seen := make(map[int]bool, len(sc.Streams))
	for i := range sc.Streams {
		st := &sc.Streams[i]
		if seen[st.ID] {
			return nil, fmt.Errorf("%w: duplicate stream id %d", errScenario, st.ID)
		}
		seen[st.ID] = true
		if st.Resolution[0] == 0 || st.Resolution[1] == 0 {
			return nil, fmt.Errorf("%w: stream %d has no resolution", errScenario, st.ID)
		}
		if st.Size == [2]uint32{} {
			st.Size = st.Resolution
		}
		if st.Framerate.Num == 0 {
			st.Framerate = sc.Framerate
		}
		if st.End == 0 {
			st.End = sc.Duration
		}
	}
	return sc, nil
}

// Caps returns the RGBA output caps of the scenario.
func (sc *Scenario) Caps() vcomp.RawVideo {
	return vcomp.RawVideo{
		Width:       sc.Width,
		Height:      sc.Height,
		PixelFormat: vcomp.PixelFormatRGBA,
		Framerate:   vcomp.Rational(sc.Framerate),
	}
}

// Options returns the compositor options of the scenario.
func (sc *Scenario) Options() []vcomp.Option {
	opts := []vcomp.Option{
		vcomp.WithBackground(backend.Color{
			R: sc.Background[0], G: sc.Background[1], B: sc.Background[2], A: sc.Background[3],
		}),
	}
	if sc.Device != "" {
		opts = append(opts, vcomp.WithDeviceName(sc.Device))
	}
	return opts
}

// Properties returns the base properties of the stream.
func (st *StreamSpec) Properties() vcomp.VideoProperties {
	return vcomp.VideoProperties{
		Resolution: vcomp.V2(st.Resolution[0], st.Resolution[1]),
		Placement: vcomp.Placement{
			Position: vcomp.V2(st.Position[0], st.Position[1]),
			Size:     vcomp.V2(st.Size[0], st.Size[1]),
			Z:        st.Z,
		},
	}
}

// Chain returns the transformation chain of the stream: cropping first,
// then corner rounding.
func (st *StreamSpec) Chain() []vcomp.Transformation {
	var chain []vcomp.Transformation
	if c := st.Crop; c != nil {
		chain = append(chain, vcomp.Cropping{
			TopLeft:           vcomp.V2(c.TopLeft[0], c.TopLeft[1]),
			Size:              vcomp.V2(c.Size[0], c.Size[1]),
			TransformPosition: c.TransformPosition,
		})
	}
	if st.Radius > 0 {
		chain = append(chain, vcomp.CornersRounding{Radius: st.Radius})
	}
	return chain
}

// FrameDuration returns the duration of one input frame in nanoseconds.
func (st *StreamSpec) FrameDuration() uint64 {
	return st.Framerate.Den * 1_000_000_000 / st.Framerate.Num
}
