package capture

import (
	"image"
	"testing"
)

func TestDesktopRectValidity(t *testing.T) {
	tests := []struct {
		name string
		rect DesktopRect
		want bool
	}{
		{"normal", NewDesktopRect(0, 0, 10, 10), true},
		{"negative origin", NewDesktopRect(-10, -10, 0, 0), true},
		{"zero value", DesktopRect{}, false},
		{"zero width", NewDesktopRect(5, 0, 5, 10), false},
		{"zero height", NewDesktopRect(0, 5, 10, 5), false},
		{"inverted", NewDesktopRect(10, 10, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rect.IsValid(); got != tt.want {
				t.Errorf("IsValid(%+v) = %v, want %v", tt.rect, got, tt.want)
			}
		})
	}
}

func TestDesktopRectUnion(t *testing.T) {
	a := NewDesktopRect(0, 0, 10, 10)
	b := NewDesktopRect(5, 5, 20, 15)

	if got, want := a.Union(b), NewDesktopRect(0, 0, 20, 15); got != want {
		t.Errorf("Union = %+v, want %+v", got, want)
	}
	if got := a.Union(b); got != b.Union(a) {
		t.Errorf("Union not commutative: %+v vs %+v", got, b.Union(a))
	}

	// The invalid rectangle is the identity element on both sides.
	if got := (DesktopRect{}).Union(a); got != a {
		t.Errorf("zero.Union(a) = %+v, want %+v", got, a)
	}
	if got := a.Union(DesktopRect{}); got != a {
		t.Errorf("a.Union(zero) = %+v, want %+v", got, a)
	}
}

func TestDesktopRectTranslate(t *testing.T) {
	r := NewDesktopRect(10, 20, 30, 40)
	v := DesktopVector{X: -5, Y: 7}

	got := r.Translate(v)
	want := NewDesktopRect(5, 27, 25, 47)
	if got != want {
		t.Errorf("Translate = %+v, want %+v", got, want)
	}
	if got.Width() != r.Width() || got.Height() != r.Height() {
		t.Error("Translate changed dimensions")
	}
}

func TestDesktopRectFromXYWH(t *testing.T) {
	r := DesktopRectFromXYWH(10, 20, 100, 50)
	if r.Left != 10 || r.Top != 20 || r.Width() != 100 || r.Height() != 50 {
		t.Errorf("DesktopRectFromXYWH = %+v", r)
	}
}

func TestRectImageRoundTrip(t *testing.T) {
	r := NewDesktopRect(-5, 0, 15, 10)
	if got := RectFromImage(r.ToImageRect()); got != r {
		t.Errorf("round trip = %+v, want %+v", got, r)
	}
	if got, want := r.ToImageRect(), image.Rect(-5, 0, 15, 10); got != want {
		t.Errorf("ToImageRect = %v, want %v", got, want)
	}
}

func TestDesktopRectContainment(t *testing.T) {
	r := NewDesktopRect(0, 0, 10, 10)

	if !r.ContainsPoint(0, 0) || !r.ContainsPoint(9, 9) {
		t.Error("interior points reported outside")
	}
	if r.ContainsPoint(10, 5) || r.ContainsPoint(5, -1) {
		t.Error("exterior points reported inside")
	}

	if !r.Contains(NewDesktopRect(2, 2, 8, 8)) {
		t.Error("inner rect reported outside")
	}
	if !r.Contains(r) {
		t.Error("rect does not contain itself")
	}
	if r.Contains(NewDesktopRect(5, 5, 15, 8)) {
		t.Error("overhanging rect reported inside")
	}
}

func TestDesktopVectorAdd(t *testing.T) {
	got := DesktopVector{X: 3, Y: -2}.Add(DesktopVector{X: -1, Y: 5})
	if got != (DesktopVector{X: 2, Y: 3}) {
		t.Errorf("Add = %+v", got)
	}
	if !(DesktopVector{}).IsZero() {
		t.Error("zero vector not reported as zero")
	}
	if (DesktopVector{X: 1}).IsZero() {
		t.Error("non-zero vector reported as zero")
	}
}
