package capture

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Scale resizes src to the target resolution in settings, returning src
// unchanged when no target is set or the target matches the source size.
// ApproxBiLinear trades a little quality for staying usable inside a capture
// tick at desktop resolutions.
func Scale(src *image.RGBA, settings Settings) *image.RGBA {
	w, h, ok := settings.TargetSize()
	if !ok || (src.Rect.Dx() == w && src.Rect.Dy() == h) {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	return dst
}
