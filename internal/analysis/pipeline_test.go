package analysis

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/jengzang/traffic-density-go/internal/detector"
	"github.com/jengzang/traffic-density-go/internal/framesource"
	"github.com/jengzang/traffic-density-go/internal/models"
)

var fixedNow = time.Date(2026, 3, 14, 8, 5, 0, 0, time.UTC)

type memoryLog struct {
	rows []models.Observation
	err  error
}

func (l *memoryLog) Append(obs models.Observation) error {
	if l.err != nil {
		return l.err
	}
	l.rows = append(l.rows, obs)
	return nil
}

type fakeSource struct {
	frames int
	failAt int
	read   int
	closed bool
}

func (s *fakeSource) Read() (image.Image, error) {
	if s.failAt > 0 && s.read+1 == s.failAt {
		return nil, errors.New("decode error")
	}
	if s.read >= s.frames {
		return nil, io.EOF
	}
	s.read++
	return image.NewGray(image.Rect(0, 0, 8, 8)), nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func openerFor(src *fakeSource) framesource.Opener {
	return framesource.OpenerFunc(func(context.Context, string) (framesource.Source, error) {
		return src, nil
	})
}

// scriptedDetector returns one label list per call, then nothing
func scriptedDetector(calls *int, script ...[]string) detector.Detector {
	return detector.Func(func(context.Context, image.Image, float64) ([]string, error) {
		*calls++
		if *calls > len(script) {
			return nil, nil
		}
		return script[*calls-1], nil
	})
}

func repeat(label string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = label
	}
	return out
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "junction.png")
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 16, 16))), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)
	return path
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "junction.mp4")
	test.That(t, os.WriteFile(path, []byte("stub"), 0o644), test.ShouldBeNil)
	return path
}

func newTestPipeline(t *testing.T, det detector.Detector, opener framesource.Opener, log ObservationLog) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Options{
		Detector: det,
		Opener:   opener,
		Log:      log,
		Now:      func() time.Time { return fixedNow },
	})
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestNewPipelineRequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(Options{Log: &memoryLog{}})
	test.That(t, err, test.ShouldNotBeNil)

	calls := 0
	_, err = NewPipeline(Options{Detector: scriptedDetector(&calls)})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProcessImage(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	det := scriptedDetector(&calls, []string{"mobil", "mobil", "motor", "motor", "motor", "truk", "person"})
	p := newTestPipeline(t, det, nil, log)

	res, err := p.ProcessImage(context.Background(), writeImage(t), "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)

	test.That(t, res.Car, test.ShouldEqual, 2)
	test.That(t, res.Bike, test.ShouldEqual, 3)
	test.That(t, res.Bus, test.ShouldEqual, 0)
	test.That(t, res.Truck, test.ShouldEqual, 1)
	test.That(t, res.Total, test.ShouldEqual, 6)
	test.That(t, res.Density, test.ShouldEqual, models.DensityLow)
	test.That(t, res.Pollution, test.ShouldEqual, 1.3)
	test.That(t, res.FuelWaste, test.ShouldEqual, 0.06)

	test.That(t, log.rows, test.ShouldHaveLength, 1)
	obs := log.rows[0]
	test.That(t, obs, test.ShouldResemble, res.Observation)
	test.That(t, obs.Date, test.ShouldEqual, "2026-03-14")
	test.That(t, obs.Time, test.ShouldEqual, "08:05")
	test.That(t, obs.Location, test.ShouldEqual, models.DefaultLocation)
	test.That(t, obs.Total, test.ShouldEqual, 6.0)
	test.That(t, obs.Averaged, test.ShouldBeFalse)
}

func TestProcessImageHighDensity(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	labels := append(repeat("car", 20), repeat("bus", 3)...)
	labels = append(labels, repeat("truck", 2)...)
	p := newTestPipeline(t, scriptedDetector(&calls, labels), nil, log)

	res, err := p.ProcessImage(context.Background(), writeImage(t), "Junction-7")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Total, test.ShouldEqual, 25)
	test.That(t, res.Density, test.ShouldEqual, models.DensityHigh)

	// round(20*0.12 + 3*0.8 + 2*1.0, 2) = 6.8, times idle 6
	want := 6.8
	want *= 6
	test.That(t, res.Pollution, test.ShouldEqual, want)
	test.That(t, res.FuelWaste, test.ShouldEqual, 1.5)
	test.That(t, log.rows[0].Location, test.ShouldEqual, "Junction-7")
}

func TestProcessImageNotFound(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	p := newTestPipeline(t, scriptedDetector(&calls), nil, log)

	_, err := p.ProcessImage(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), "")
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 0)
	test.That(t, log.rows, test.ShouldBeEmpty)
}

func TestProcessImageUndecodable(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	p := newTestPipeline(t, scriptedDetector(&calls), nil, log)

	path := filepath.Join(t.TempDir(), "broken.jpg")
	test.That(t, os.WriteFile(path, []byte("not a jpeg"), 0o644), test.ShouldBeNil)

	_, err := p.ProcessImage(context.Background(), path, "")
	test.That(t, errors.Is(err, ErrOpen), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 0)
	test.That(t, log.rows, test.ShouldBeEmpty)
}

func TestProcessImageDetectorError(t *testing.T) {
	log := &memoryLog{}
	det := detector.Func(func(context.Context, image.Image, float64) ([]string, error) {
		return nil, errors.New("cuda out of memory")
	})
	p := newTestPipeline(t, det, nil, log)

	_, err := p.ProcessImage(context.Background(), writeImage(t), "")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cuda out of memory")
	test.That(t, log.rows, test.ShouldBeEmpty)
}

func TestProcessImageWriteError(t *testing.T) {
	calls := 0
	log := &memoryLog{err: errors.New("disk full")}
	p := newTestPipeline(t, scriptedDetector(&calls, []string{"car"}), nil, log)

	_, err := p.ProcessImage(context.Background(), writeImage(t), "")
	test.That(t, errors.Is(err, ErrWrite), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "disk full")
}

func TestProcessVideo(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	src := &fakeSource{frames: 47}
	det := scriptedDetector(&calls,
		repeat("car", 12),
		append(repeat("mobil", 10), "bus", "bus", "person"),
		[]string{"truk", "truck", "traffic light"},
	)
	p := newTestPipeline(t, det, openerFor(src), log)

	sum, err := p.ProcessVideo(context.Background(), writeVideo(t), 15, "Junction-2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.closed, test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 3)

	test.That(t, sum.FramesRead, test.ShouldEqual, 47)
	test.That(t, sum.FramesSampled, test.ShouldEqual, 3)
	test.That(t, sum.Timeline.Totals, test.ShouldResemble, []int{12, 12, 2})
	test.That(t, sum.Timeline.Pollution, test.ShouldHaveLength, 3)
	test.That(t, sum.Timeline.Pollution[0], test.ShouldAlmostEqual, 1.44)
	test.That(t, sum.Timeline.Pollution[1], test.ShouldAlmostEqual, 2.8)
	test.That(t, sum.Timeline.Pollution[2], test.ShouldAlmostEqual, 2.0)

	test.That(t, sum.FinalCounts, test.ShouldResemble, counts(22, 0, 2, 2))
	test.That(t, sum.Average, test.ShouldEqual, 8.67)
	test.That(t, sum.Density, test.ShouldEqual, models.DensityLow)
	test.That(t, sum.Pollution, test.ShouldEqual, 2.08)
	test.That(t, sum.Fuel, test.ShouldEqual, 0.09)

	test.That(t, log.rows, test.ShouldHaveLength, 1)
	obs := log.rows[0]
	test.That(t, obs, test.ShouldResemble, sum.Observation)
	test.That(t, obs.Counts, test.ShouldResemble, counts(22, 0, 2, 2))
	test.That(t, obs.Total, test.ShouldEqual, 8.67)
	test.That(t, obs.Averaged, test.ShouldBeTrue)
	test.That(t, obs.Location, test.ShouldEqual, "Junction-2")
}

// The summary pollution multiplies the mean per-frame emission by the idle
// time of the average density; frames are not weighted by their own density.
func TestProcessVideoPollutionUsesRunDensity(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	det := scriptedDetector(&calls, repeat("car", 5), repeat("car", 20))
	p := newTestPipeline(t, det, openerFor(&fakeSource{frames: 2}), log)

	sum, err := p.ProcessVideo(context.Background(), writeVideo(t), 1, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.Average, test.ShouldEqual, 12.5)
	test.That(t, sum.Density, test.ShouldEqual, models.DensityMedium)
	test.That(t, sum.Pollution, test.ShouldEqual, 4.5)
	test.That(t, sum.Fuel, test.ShouldEqual, 0.38)
}

type rgb24Source struct {
	frames, read int
	pix          []byte
}

func (s *rgb24Source) Read() (image.Image, error) {
	if s.read >= s.frames {
		return nil, io.EOF
	}
	s.read++
	for i := range s.pix {
		s.pix[i] = byte(s.read)
	}
	return &framesource.RGB24{Pix: s.pix, Stride: 6, Rect: image.Rect(0, 0, 2, 2)}, nil
}

func (s *rgb24Source) Close() error { return nil }

func TestProcessVideoMaterializesSampledFramesOnly(t *testing.T) {
	var seen []*image.RGBA
	det := detector.Func(func(_ context.Context, frame image.Image, _ float64) ([]string, error) {
		rgba, ok := frame.(*image.RGBA)
		test.That(t, ok, test.ShouldBeTrue)
		seen = append(seen, rgba)
		return []string{"car"}, nil
	})
	src := &rgb24Source{frames: 9, pix: make([]byte, 12)}
	p := newTestPipeline(t, det, framesource.OpenerFunc(func(context.Context, string) (framesource.Source, error) {
		return src, nil
	}), &memoryLog{})

	sum, err := p.ProcessVideo(context.Background(), writeVideo(t), 3, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.FramesRead, test.ShouldEqual, 9)
	test.That(t, seen, test.ShouldHaveLength, 3)
	// each detector call got its own copy, not the source's shared buffer
	test.That(t, seen[0].RGBAAt(0, 0).R, test.ShouldEqual, 3)
	test.That(t, seen[1].RGBAAt(0, 0).R, test.ShouldEqual, 6)
	test.That(t, seen[2].RGBAAt(1, 1).R, test.ShouldEqual, 9)
}

func TestProcessVideoNoSampledFrames(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	src := &fakeSource{frames: 10}
	p := newTestPipeline(t, scriptedDetector(&calls), openerFor(src), log)

	sum, err := p.ProcessVideo(context.Background(), writeVideo(t), 15, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 0)
	test.That(t, src.closed, test.ShouldBeTrue)
	test.That(t, sum.FramesRead, test.ShouldEqual, 10)
	test.That(t, sum.FramesSampled, test.ShouldEqual, 0)
	test.That(t, sum.Average, test.ShouldEqual, 0)
	test.That(t, sum.Density, test.ShouldEqual, models.DensityLow)
	test.That(t, sum.Pollution, test.ShouldEqual, 0)
	test.That(t, sum.Fuel, test.ShouldEqual, 0)
	test.That(t, log.rows, test.ShouldHaveLength, 1)
	test.That(t, log.rows[0].Total, test.ShouldEqual, 0)
	test.That(t, log.rows[0].Averaged, test.ShouldBeFalse)
}

func TestProcessVideoDefaultFrameSkip(t *testing.T) {
	calls := 0
	p := newTestPipeline(t, scriptedDetector(&calls), openerFor(&fakeSource{frames: 31}), &memoryLog{})

	sum, err := p.ProcessVideo(context.Background(), writeVideo(t), 0, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 2)
	test.That(t, sum.Timeline.Totals, test.ShouldResemble, []int{0, 0})
}

func TestProcessVideoNotFound(t *testing.T) {
	opened := false
	opener := framesource.OpenerFunc(func(context.Context, string) (framesource.Source, error) {
		opened = true
		return &fakeSource{}, nil
	})
	calls := 0
	p := newTestPipeline(t, scriptedDetector(&calls), opener, &memoryLog{})

	_, err := p.ProcessVideo(context.Background(), "/no/such/video.mp4", 15, "")
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)
	test.That(t, opened, test.ShouldBeFalse)
}

func TestProcessVideoOpenError(t *testing.T) {
	opener := framesource.OpenerFunc(func(context.Context, string) (framesource.Source, error) {
		return nil, errors.New("unsupported codec")
	})
	calls := 0
	log := &memoryLog{}
	p := newTestPipeline(t, scriptedDetector(&calls), opener, log)

	_, err := p.ProcessVideo(context.Background(), writeVideo(t), 15, "")
	test.That(t, errors.Is(err, ErrOpen), test.ShouldBeTrue)
	test.That(t, strings.Contains(err.Error(), "unsupported codec"), test.ShouldBeTrue)
	test.That(t, log.rows, test.ShouldBeEmpty)
}

func TestProcessVideoReadErrorWritesNothing(t *testing.T) {
	calls := 0
	log := &memoryLog{}
	src := &fakeSource{frames: 60, failAt: 40}
	p := newTestPipeline(t, scriptedDetector(&calls), openerFor(src), log)

	_, err := p.ProcessVideo(context.Background(), writeVideo(t), 15, "")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "decode error")
	test.That(t, calls, test.ShouldEqual, 2)
	test.That(t, src.closed, test.ShouldBeTrue)
	test.That(t, log.rows, test.ShouldBeEmpty)
}

func TestProcessVideoDetectorErrorClosesSource(t *testing.T) {
	log := &memoryLog{}
	src := &fakeSource{frames: 30}
	det := detector.Func(func(context.Context, image.Image, float64) ([]string, error) {
		return nil, errors.New("detector crashed")
	})
	p := newTestPipeline(t, det, openerFor(src), log)

	_, err := p.ProcessVideo(context.Background(), writeVideo(t), 15, "")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, src.closed, test.ShouldBeTrue)
	test.That(t, src.read, test.ShouldEqual, 15)
	test.That(t, log.rows, test.ShouldBeEmpty)
}

func TestProcessVideoCancelled(t *testing.T) {
	log := &memoryLog{}
	src := &fakeSource{frames: 30}
	calls := 0
	p := newTestPipeline(t, scriptedDetector(&calls), openerFor(src), log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessVideo(ctx, writeVideo(t), 15, "")
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, src.closed, test.ShouldBeTrue)
	test.That(t, log.rows, test.ShouldBeEmpty)
}
