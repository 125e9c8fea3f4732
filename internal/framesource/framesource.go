// Package framesource turns image and video files into decoded frames.
package framesource

import (
	"context"
	"image"
	_ "image/jpeg" // register decoders for LoadImage
	_ "image/png"
	"io"
	"iter"
	"os"

	"github.com/pkg/errors"
)

// Source yields decoded frames in order. Read returns io.EOF after the last frame.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Opener opens a video file as a frame Source
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, path string) (Source, error)

// Open calls f
func (f OpenerFunc) Open(ctx context.Context, path string) (Source, error) {
	return f(ctx, path)
}

// Frame is a decoded frame and its 1-based position in the source
type Frame struct {
	Index int
	Image image.Image
}

// Frames returns a lazy sequence over src. The sequence ends at io.EOF; any
// other read error is yielded once and ends the sequence. Frames does not
// close src.
func Frames(src Source) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for index := 1; ; index++ {
			img, err := src.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Frame{Index: index}, err)
				return
			}
			if !yield(Frame{Index: index, Image: img}, nil) {
				return
			}
		}
	}
}

// Sampled reports whether the frame at index is selected when keeping every skip-th frame
func Sampled(index, skip int) bool {
	return skip > 0 && index%skip == 0
}

// LoadImage decodes a still JPEG or PNG image
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %s", path)
	}
	return img, nil
}
