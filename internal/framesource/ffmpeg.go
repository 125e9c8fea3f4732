package framesource

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"sync"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

// ErrNoVideoStream is returned by Open for files without a decodable video stream
var ErrNoVideoStream = errors.New("no video stream")

// FFmpegOpener decodes videos with the ffmpeg binary on PATH
type FFmpegOpener struct {
	logger *zap.SugaredLogger
}

// NewFFmpegOpener creates an opener that shells out to ffmpeg and ffprobe
func NewFFmpegOpener(logger *zap.SugaredLogger) *FFmpegOpener {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FFmpegOpener{logger: logger}
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// VideoSize returns the frame size of the first video stream in ffprobe JSON output
func VideoSize(probeJSON string) (width, height int, err error) {
	var probe probeResult
	if err := json.Unmarshal([]byte(probeJSON), &probe); err != nil {
		return 0, 0, errors.Wrap(err, "failed to parse probe output")
	}
	for _, s := range probe.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, nil
		}
	}
	return 0, 0, ErrNoVideoStream
}

// Open probes path and starts decoding it to raw RGB frames
func (o *FFmpegOpener) Open(ctx context.Context, path string) (Source, error) {
	probeJSON, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to probe %s", path)
	}
	width, height, err := VideoSize(probeJSON)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	src := newFFmpegSource(pr, width, height, cancel)

	stream := ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgb24"}).
		WithOutput(pw).
		WithErrorOutput(&src.stderr)
	stream.Context = ctx

	go func() {
		defer close(src.done)
		err := stream.Run()
		if err != nil {
			err = errors.Wrapf(err, "ffmpeg failed: %s", bytes.TrimSpace(src.stderr.Bytes()))
		}
		// nil closes the pipe normally, so the reader sees io.EOF
		pw.CloseWithError(err)
	}()

	o.logger.Debugw("video opened", "path", path, "width", width, "height", height)
	return src, nil
}

type ffmpegSource struct {
	pipe   *io.PipeReader
	frame  *RGB24
	stderr bytes.Buffer

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newFFmpegSource(pipe *io.PipeReader, width, height int, cancel context.CancelFunc) *ffmpegSource {
	return &ffmpegSource{
		pipe:   pipe,
		frame:  newRGB24(make([]byte, width*height*3), width, height),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Read returns the next frame as an *RGB24 over a buffer reused by every call,
// so skipped frames are never converted. A truncated trailing frame counts as end of stream.
func (s *ffmpegSource) Read() (image.Image, error) {
	_, err := io.ReadFull(s.pipe, s.frame.Pix)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return s.frame, nil
}

// Close stops ffmpeg and waits for it to exit
func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.pipe.Close()
		<-s.done
	})
	return nil
}

func rgb24ToRGBA(buf []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(buf) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
