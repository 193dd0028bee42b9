package faceshape

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel_Parse(t *testing.T) {
	tests := map[string]Label{
		"Oval":        Oval,
		"ovalado":     Oval,
		"Ovalada":     Oval,
		"Redonda":     Round,
		"ROUND":       Round,
		"Cuadrada":    Square,
		"rectangular": Square,
		"Corazón":     Heart,
		"corazon":     Heart,
		"Diamante":    Diamond,
		" Triangle ":  Triangular,
	}
	for name, want := range tests {
		got, ok := ParseLabel(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := ParseLabel("Oblong")
	assert.False(t, ok)
	_, ok = ParseLabel("Undetected")
	assert.False(t, ok)
}

func TestLabel_Order(t *testing.T) {
	assert.Equal(t, []Label{Oval, Round, Square, Heart, Diamond, Triangular}, Labels())

	// The returned slice is a copy.
	l := Labels()
	l[0] = Undetected
	assert.Equal(t, Oval, Labels()[0])
	assert.Equal(t, "Heart", Heart.String())
}

func TestFaceBox(t *testing.T) {
	box := FaceBox{X: 10, Y: 20, Width: 30, Height: 40}
	assert.True(t, box.Valid())
	assert.Equal(t, image.Rect(10, 20, 40, 60), box.Rect())

	assert.False(t, FaceBox{Width: 0, Height: 10}.Valid())
	assert.False(t, FaceBox{Width: 10, Height: -1}.Valid())
}
