package faceshape

import (
	"image"
	"strings"
)

// Label is the face shape category attached to a face.
type Label string

// The canonical face shape categories.
const (
	Oval       Label = "Oval"
	Round      Label = "Round"
	Square     Label = "Square"
	Heart      Label = "Heart"
	Diamond    Label = "Diamond"
	Triangular Label = "Triangular"

	// Undetected is reported when no usable prediction was collected.
	Undetected Label = "Undetected"
)

// labels holds the canonical categories in their accumulation order.
// This order is also the "first encountered" order used on score ties.
var labels = []Label{Oval, Round, Square, Heart, Diamond, Triangular}

// labelAliases maps the historical category names onto the canonical ones.
var labelAliases = map[string]Label{
	"oval":        Oval,
	"ovalado":     Oval,
	"ovalada":     Oval,
	"round":       Round,
	"redondo":     Round,
	"redonda":     Round,
	"square":      Square,
	"rectangular": Square,
	"cuadrado":    Square,
	"cuadrada":    Square,
	"heart":       Heart,
	"corazón":     Heart,
	"corazon":     Heart,
	"diamond":     Diamond,
	"diamante":    Diamond,
	"triangular":  Triangular,
	"triangle":    Triangular,
}

// Labels returns the canonical face shape categories.
func Labels() []Label {
	out := make([]Label, len(labels))
	copy(out, labels)
	return out
}

// ParseLabel resolves a category name, including the legacy aliases, to a canonical Label.
func ParseLabel(s string) (Label, bool) {
	l, ok := labelAliases[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

func (l Label) String() string { return string(l) }

// index returns the position of the label inside the canonical order or -1.
func (l Label) index() int {
	for i, c := range labels {
		if c == l {
			return i
		}
	}
	return -1
}

// FaceBox is the pixel rectangle enclosing a detected face.
type FaceBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the box into an image.Rectangle.
func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Valid reports whether the box has a positive area.
func (b FaceBox) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Measurements holds the normalized geometric proportions of a face region.
// Widths are expressed in pixels of the source frame.
type Measurements struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Ratio  float64 `json:"ratio"`

	ForeheadWidth int `json:"forehead_width"`
	MiddleWidth   int `json:"middle_width"`
	JawWidth      int `json:"jaw_width"`
	EyeDistance   int `json:"eye_distance"`

	ForeheadToMiddleRatio float64 `json:"forehead_to_middle_ratio"`
	JawToMiddleRatio      float64 `json:"jaw_to_middle_ratio"`
	ForeheadToJawRatio    float64 `json:"forehead_to_jaw_ratio"`

	TempleWidth int `json:"temple_width"`
	CheekWidth  int `json:"cheek_width"`
}

// ClassificationResult is a single per-frame prediction.
type ClassificationResult struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}
