package faceshape

import (
	"image"
	"math"
	"sort"
)

// contourEdgeThreshold is the minimum gradient magnitude of a boundary pixel.
const contourEdgeThreshold = 100

// Contour is a closed polygon outlining the face, expressed in the coordinates of the face region.
// The last vertex is implicitly connected to the first one.
type Contour []image.Point

// ExtractContour traces the outer boundary of the face region. The region is converted to
// grayscale, blurred and passed through a Sobel edge detector, then for every row the leftmost and
// rightmost edge pixels are joined into a closed outline. It reports false when the region does not
// contain enough edges to enclose an area.
func ExtractContour(region image.Image) (Contour, bool) {
	if region == nil || region.Bounds().Empty() {
		return nil, false
	}
	edges := sobelEdges(newGrayPlane(region).blur(blurSigma), contourEdgeThreshold)

	var left, right []image.Point
	for y := 0; y < edges.height; y++ {
		first, last := -1, -1
		for x := 0; x < edges.width; x++ {
			if edges.at(x, y) == 0 {
				continue
			}
			if first < 0 {
				first = x
			}
			last = x
		}
		if first < 0 || first == last {
			continue
		}
		left = append(left, image.Pt(first, y))
		right = append(right, image.Pt(last, y))
	}
	if len(left) < 2 {
		return nil, false
	}

	c := make(Contour, 0, len(left)+len(right))
	c = append(c, left...)
	for i := len(right) - 1; i >= 0; i-- {
		c = append(c, right[i])
	}
	if c.Area() == 0 {
		return nil, false
	}
	return c, true
}

// Area returns the enclosed area of the polygon using the shoelace formula.
func (c Contour) Area() float64 {
	n := len(c)
	if n < 3 {
		return 0
	}
	var sum int
	for i := 0; i < n; i++ {
		p, q := c[i], c[(i+1)%n]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

// Perimeter returns the length of the closed polygon.
func (c Contour) Perimeter() float64 {
	n := len(c)
	if n < 2 {
		return 0
	}
	var length float64
	for i := 0; i < n; i++ {
		length += dist(c[i], c[(i+1)%n])
	}
	return length
}

// ConvexHull returns the convex hull of the polygon vertices in counter clockwise order,
// computed with the monotone chain algorithm.
func (c Contour) ConvexHull() Contour {
	pts := make([]image.Point, len(c))
	copy(pts, c)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X == pts[j].X {
			return pts[i].Y < pts[j].Y
		}
		return pts[i].X < pts[j].X
	})
	if len(pts) < 3 {
		return pts
	}

	hull := make(Contour, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// Solidity is the ratio between the polygon area and the area of its convex hull.
// It returns 0 for a degenerate hull.
func (c Contour) Solidity() float64 {
	hullArea := c.ConvexHull().Area()
	if hullArea == 0 {
		return 0
	}
	return c.Area() / hullArea
}

// Approximate simplifies the closed polygon with the Douglas-Peucker algorithm,
// dropping every vertex closer than epsilon to the simplified outline.
func (c Contour) Approximate(epsilon float64) Contour {
	if len(c) < 3 {
		out := make(Contour, len(c))
		copy(out, c)
		return out
	}
	// Split the ring at the vertex farthest from the first one and simplify both chains.
	far, maxDist := 0, -1.0
	for i, p := range c {
		if d := dist(c[0], p); d > maxDist {
			far, maxDist = i, d
		}
	}
	first := douglasPeucker(c[:far+1], epsilon)
	second := douglasPeucker(append(append(Contour{}, c[far:]...), c[0]), epsilon)

	out := make(Contour, 0, len(first)+len(second))
	out = append(out, first...)
	out = append(out, second[1:len(second)-1]...)
	return out
}

func douglasPeucker(pts Contour, epsilon float64) Contour {
	if len(pts) < 3 {
		return append(Contour{}, pts...)
	}
	a, b := pts[0], pts[len(pts)-1]
	idx, maxDist := 0, 0.0
	for i := 1; i < len(pts)-1; i++ {
		if d := segmentDist(pts[i], a, b); d > maxDist {
			idx, maxDist = i, d
		}
	}
	if maxDist <= epsilon {
		return Contour{a, b}
	}
	head := douglasPeucker(pts[:idx+1], epsilon)
	tail := douglasPeucker(pts[idx:], epsilon)
	return append(head[:len(head)-1], tail...)
}

func cross(o, a, b image.Point) int {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func dist(p, q image.Point) float64 {
	return math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
}

// segmentDist returns the distance between p and the segment ab.
func segmentDist(p, a, b image.Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	if dx == 0 && dy == 0 {
		return dist(p, a)
	}
	t := (float64(p.X-a.X)*dx + float64(p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(float64(p.X)-(float64(a.X)+t*dx), float64(p.Y)-(float64(a.Y)+t*dy))
}
