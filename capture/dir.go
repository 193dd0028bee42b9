// Package capture provides the frame sources feeding a capture session:
// an image sequence directory, a stream of BMP frames and an ffmpeg backed video reader.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/esimov/faceshape/utils"
	_ "golang.org/x/image/bmp"
)

// ErrSourceClosed is returned when reading from a closed source.
var ErrSourceClosed = errors.New("frame source closed")

// DirSource replays the images of a directory in lexical order, one frame per image.
type DirSource struct {
	mu     sync.Mutex
	files  []string
	pos    int
	closed bool
}

// NewDirSource lists the image files of dir. Files which are not images are ignored.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read the frames directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ctype, err := utils.DetectContentType(path)
		if err != nil {
			continue
		}
		if strings.Contains(ctype.(string), "image") {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files found in %s", dir)
	}
	sort.Strings(files)

	return &DirSource{files: files}, nil
}

// Len returns the number of frames of the sequence.
func (d *DirSource) Len() int {
	return len(d.files)
}

// Next decodes the next image of the sequence. It returns io.EOF after the last one.
func (d *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrSourceClosed
	}
	if d.pos >= len(d.files) {
		d.mu.Unlock()
		return nil, io.EOF
	}
	path := d.files[d.pos]
	d.pos++
	d.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode frame %s: %w", path, err)
	}
	return img, nil
}

// Close implements faceshape.FrameSource.
func (d *DirSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
