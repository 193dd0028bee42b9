package capture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/image/bmp"
)

const (
	bmpHeaderSize = 14
	// maxFrameSize protects against corrupted headers announcing huge frames.
	maxFrameSize = 64 << 20
)

// BMPStream decodes a stream of concatenated BMP images, as written by
// `ffmpeg -f image2pipe -vcodec bmp`. Every image is delimited by the file size of its header.
type BMPStream struct {
	mu        sync.Mutex
	r         *bufio.Reader
	closer    io.Closer
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewBMPStream creates a frame source reading BMP frames from r. If r is an io.Closer
// it is closed together with the stream.
func NewBMPStream(r io.Reader) *BMPStream {
	s := &BMPStream{r: bufio.NewReaderSize(r, 1<<20)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next reads and decodes the next frame. It returns io.EOF once the stream ends on a frame boundary.
// The context is checked before reading, a blocked read is interrupted by Close.
func (s *BMPStream) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrSourceClosed
	}

	s.mu.Lock()
	frame, err := readBMPFrame(s.r)
	s.mu.Unlock()
	if err != nil {
		if s.closed.Load() {
			return nil, ErrSourceClosed
		}
		return nil, err
	}
	img, err := bmp.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("unable to decode bmp frame: %w", err)
	}
	return img, nil
}

// Close implements faceshape.FrameSource. Closing the underlying reader unblocks a pending Next.
func (s *BMPStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

// readBMPFrame reads a single BMP file out of the stream.
func readBMPFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, bmpHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated bmp header: %w", err)
		}
		return nil, err
	}
	if header[0] != 'B' || header[1] != 'M' {
		return nil, errors.New("invalid bmp signature")
	}
	size := binary.LittleEndian.Uint32(header[2:6])
	if size <= bmpHeaderSize || size > maxFrameSize {
		return nil, fmt.Errorf("invalid bmp frame size: %d", size)
	}

	frame := make([]byte, size)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[bmpHeaderSize:]); err != nil {
		return nil, fmt.Errorf("truncated bmp frame: %w", err)
	}
	return frame, nil
}
