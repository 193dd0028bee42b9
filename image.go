package faceshape

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/esimov/faceshape/utils"
	_ "golang.org/x/image/bmp"
)

// decodeImage decodes an image file to type image.Image.
func decodeImage(src string) (image.Image, error) {
	ctype, err := utils.DetectContentType(src)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(ctype.(string), "image") {
		return nil, fmt.Errorf("%s is not an image file", src)
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("could not open the image file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode the image file: %w", err)
	}
	return img, nil
}

// cropRegion clips the face box against the frame bounds and returns the face region
// as an NRGBA image with its origin at (0, 0).
func cropRegion(box FaceBox, frame image.Image) (*image.NRGBA, error) {
	if frame == nil || !box.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidRegion, box)
	}
	bounds := frame.Bounds()
	rect := box.Rect().Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: box %+v outside frame %v", ErrInvalidRegion, box, bounds)
	}
	return imaging.Crop(frame, rect), nil
}
