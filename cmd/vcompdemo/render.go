package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gogpu/vcomp"
	"github.com/gogpu/vcomp/internal/convert"
)

type renderOptions struct {
	scenario string
	output   string
	every    int
	device   string
}

var renderOpts renderOptions

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Composite a scenario file and write PNG frames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd.Context(), renderOpts)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOpts.scenario, "scenario", "s", "", "Path to the YAML scenario")
	renderCmd.Flags().StringVarP(&renderOpts.output, "output", "o", "frames", "Directory for PNG frames")
	renderCmd.Flags().IntVarP(&renderOpts.every, "every", "e", 1, "Write every n-th output frame (0 writes none)")
	renderCmd.Flags().StringVarP(&renderOpts.device, "device", "d", "", "Rendering device, overrides the scenario (see 'devices')")
	_ = renderCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(renderCmd)
}

func runRender(ctx context.Context, opts renderOptions) error {
	sc, err := LoadScenario(opts.scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	if opts.device != "" {
		sc.Device = opts.device
	}
	if opts.every > 0 {
		if err := os.MkdirAll(opts.output, 0o755); err != nil {
			return err
		}
	}

	r, err := newRenderer(sc)
	if err != nil {
		return err
	}
	defer r.Close()

	ticks := r.Ticks()
	bar := progressbar.NewOptions(ticks,
		progressbar.OptionSetDescription("compositing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	written := 0
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, pts, err := r.Tick(i)
		if err != nil {
			return fmt.Errorf("tick %d: %w", i, err)
		}
		if opts.every > 0 && i%opts.every == 0 {
			path := filepath.Join(opts.output, fmt.Sprintf("frame_%05d.png", i))
			if err := writePNG(path, img); err != nil {
				return err
			}
			written++
		}
		logger.Debug("tick", "index", i, "pts", pts)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	logger.Info("render finished", "ticks", ticks, "written", written, "output", opts.output)
	return nil
}

// feed generates the frames of one synthetic stream.
type feed struct {
	spec    *StreamSpec
	next    uint64
	ended   bool
	updated int

	rgba []byte
	i420 []byte
}

// renderer drives a compositor through the ticks of a scenario.
type renderer struct {
	sc      *Scenario
	comp    *vcomp.Compositor
	feeds   []*feed
	out     []byte
	frameNs float64
}

func newRenderer(sc *Scenario) (*renderer, error) {
	comp, err := vcomp.New(sc.Caps(), sc.Options()...)
	if err != nil {
		return nil, err
	}
	r := &renderer{
		sc:      sc,
		comp:    comp,
		out:     make([]byte, sc.Caps().FrameSize()),
		frameNs: comp.FrameDuration(),
	}
	for i := range sc.Streams {
		st := &sc.Streams[i]
		if err := comp.AddVideo(st.ID, st.Properties(), st.Chain()); err != nil {
			comp.Close()
			return nil, err
		}
		w, h := int(st.Resolution[0]), int(st.Resolution[1])
		r.feeds = append(r.feeds, &feed{
			spec: st,
			next: st.Start.Nanos(),
			rgba: make([]byte, w*h*4),
			i420: make([]byte, convert.I420Size(w, h)),
		})
	}
	return r, nil
}

// Ticks returns the number of output frames covering the scenario.
func (r *renderer) Ticks() int {
	return int(math.Ceil(float64(r.sc.Duration.Nanos()) / r.frameNs))
}

// Tick feeds every stream up to the end of output frame i and composites
// it.
func (r *renderer) Tick(i int) (*image.NRGBA, uint64, error) {
	now := uint64(float64(i) * r.frameNs)
	horizon := uint64(float64(i+1) * r.frameNs)
	for _, f := range r.feeds {
		if err := r.feed(f, now, horizon); err != nil {
			return nil, 0, err
		}
	}
	if !r.comp.AllFramesReady() {
		logger.Debug("drawing with missing frames", "tick", i)
	}
	r.comp.DumpQueueState()

	pts, err := r.comp.DrawInto(r.out)
	if err != nil {
		return nil, 0, err
	}
	w, h := int(r.sc.Width), int(r.sc.Height)
	return &image.NRGBA{Pix: r.out, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, pts, nil
}

func (r *renderer) feed(f *feed, now, horizon uint64) error {
	if f.ended {
		return nil
	}
	st := f.spec
	for f.updated < len(st.Updates) && st.Updates[f.updated].At.Nanos() <= now {
		u := st.Updates[f.updated]
		p := vcomp.Placement{
			Position: vcomp.V2(u.Position[0], u.Position[1]),
			Size:     vcomp.V2(u.Size[0], u.Size[1]),
			Z:        u.Z,
		}
		if err := r.comp.UpdateProperties(st.ID, nil, &p, nil); err != nil {
			return err
		}
		f.updated++
	}

	end := st.End.Nanos()
	step := st.FrameDuration()
	for f.next < horizon && f.next < end {
		synthesize(f.rgba, st, f.next/step)
		w, h := int(st.Resolution[0]), int(st.Resolution[1])
		if err := convert.RGBAToI420(f.i420, f.rgba, w, h); err != nil {
			return err
		}
		if err := r.comp.UploadTexture(st.ID, f.i420, f.next); err != nil {
			return err
		}
		f.next += step
	}
	if f.next >= end {
		if err := r.comp.SendEndOfStream(st.ID); err != nil && !errors.Is(err, vcomp.ErrUnknownStream) {
			return err
		}
		f.ended = true
	}
	return nil
}

// Close releases the compositor.
func (r *renderer) Close() {
	r.comp.Close()
}

// synthesize fills rgba with the stream colour and a light bar that moves
// one column per frame.
func synthesize(rgba []byte, st *StreamSpec, frame uint64) {
	w, h := int(st.Resolution[0]), int(st.Resolution[1])
	bar := int(frame % uint64(w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			c := st.Color
			if x == bar {
				c = [3]uint8{255, 255, 255}
			}
			rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = c[0], c[1], c[2], 255
		}
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
