package capture

import "image"

// DesktopVector is an offset between two points in desktop coordinates.
type DesktopVector struct {
	X int
	Y int
}

// Add returns the component-wise sum of v and o.
func (v DesktopVector) Add(o DesktopVector) DesktopVector {
	return DesktopVector{X: v.X + o.X, Y: v.Y + o.Y}
}

// IsZero reports whether v is the zero offset.
func (v DesktopVector) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// DesktopRect is an axis-aligned rectangle in desktop coordinates, either
// adapter-local or global virtual-desktop space. The zero value is the empty
// rectangle. DesktopRect is a value type; Union and Translate return new
// rectangles.
type DesktopRect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// NewDesktopRect returns the rectangle spanning (left,top) to (right,bottom).
func NewDesktopRect(left, top, right, bottom int) DesktopRect {
	return DesktopRect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// DesktopRectFromXYWH returns the rectangle with origin (x,y) and the given
// width and height.
func DesktopRectFromXYWH(x, y, width, height int) DesktopRect {
	return DesktopRect{Left: x, Top: y, Right: x + width, Bottom: y + height}
}

// Width returns the horizontal extent of r.
func (r DesktopRect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent of r.
func (r DesktopRect) Height() int { return r.Bottom - r.Top }

// TopLeft returns the origin of r as a vector.
func (r DesktopRect) TopLeft() DesktopVector {
	return DesktopVector{X: r.Left, Y: r.Top}
}

// IsValid reports whether r encloses at least one pixel. Degenerate and
// inverted rectangles are invalid; an output reporting one is not capturable.
func (r DesktopRect) IsValid() bool {
	return r.Right > r.Left && r.Bottom > r.Top
}

// Union returns the smallest rectangle enclosing both r and o. An invalid
// rectangle is the identity element: union with it returns the other operand
// unchanged.
func (r DesktopRect) Union(o DesktopRect) DesktopRect {
	if !r.IsValid() {
		return o
	}
	if !o.IsValid() {
		return r
	}
	return DesktopRect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// ContainsPoint reports whether (x, y) lies inside r.
func (r DesktopRect) ContainsPoint(x, y int) bool {
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

// Contains reports whether o lies entirely inside r.
func (r DesktopRect) Contains(o DesktopRect) bool {
	return o.Left >= r.Left && o.Top >= r.Top && o.Right <= r.Right && o.Bottom <= r.Bottom
}

// Translate returns r shifted by v.
func (r DesktopRect) Translate(v DesktopVector) DesktopRect {
	return DesktopRect{
		Left:   r.Left + v.X,
		Top:    r.Top + v.Y,
		Right:  r.Right + v.X,
		Bottom: r.Bottom + v.Y,
	}
}

// ToImageRect converts r to the stdlib rectangle type.
func (r DesktopRect) ToImageRect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// RectFromImage converts a stdlib rectangle to a DesktopRect.
func RectFromImage(r image.Rectangle) DesktopRect {
	return DesktopRect{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}
