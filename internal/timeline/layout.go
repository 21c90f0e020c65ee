package timeline

import "image"

// Layout is the derived geometry for one export: the crop window on the
// original frame and its placement in the output canvas. It is computed
// from zoom/pan and the target resolution, never stored.
type Layout struct {
	// CanvasSize is the output canvas in pixels.
	CanvasSize image.Point
	// SourceRect is the crop window on the original frame, in source pixels.
	SourceRect image.Rectangle
	// DestRect is where the cropped frame lands in the output canvas,
	// centered with letterboxing when aspect ratios differ.
	DestRect image.Rectangle
}

// evenDown rounds n down to the nearest even integer, never below 2.
// Video codecs require even pixel dimensions.
func evenDown(n int) int {
	n -= n % 2
	if n < 2 {
		n = 2
	}
	return n
}

// evenOffset rounds an offset down to the nearest even non-negative integer.
func evenOffset(n int) int {
	if n < 0 {
		n = 0
	}
	return n - n%2
}

// ComputeLayout derives the crop and placement geometry for a source frame
// of srcW x srcH under the given zoom and normalized pan, targeting a
// canvas of canvasW x canvasH. All emitted dimensions and offsets are even
// and clamped inside their respective bounds.
func ComputeLayout(srcW, srcH int, zoom, panX, panY float64, canvasW, canvasH int) Layout {
	if srcW < 2 {
		srcW = 2
	}
	if srcH < 2 {
		srcH = 2
	}
	if zoom < 1 {
		zoom = 1
	}
	panX = clampFloat(panX, -1, 1)
	panY = clampFloat(panY, -1, 1)
	canvasW = evenDown(canvasW)
	canvasH = evenDown(canvasH)

	cropW := evenDown(int(float64(srcW) / zoom))
	cropH := evenDown(int(float64(srcH) / zoom))
	if cropW > srcW {
		cropW = evenDown(srcW)
	}
	if cropH > srcH {
		cropH = evenDown(srcH)
	}

	// Pan distributes the leftover margin: -1 pins the crop to the
	// top/left edge, +1 to the bottom/right, 0 centers it.
	marginX := srcW - cropW
	marginY := srcH - cropH
	cropX := evenOffset(int(float64(marginX) * (panX + 1) / 2))
	cropY := evenOffset(int(float64(marginY) * (panY + 1) / 2))
	if cropX+cropW > srcW {
		cropX = evenOffset(srcW - cropW)
	}
	if cropY+cropH > srcH {
		cropY = evenOffset(srcH - cropH)
	}

	// Fit the crop into the canvas preserving aspect ratio, centered.
	scale := minFloat(float64(canvasW)/float64(cropW), float64(canvasH)/float64(cropH))
	destW := evenDown(int(float64(cropW) * scale))
	destH := evenDown(int(float64(cropH) * scale))
	if destW > canvasW {
		destW = canvasW
	}
	if destH > canvasH {
		destH = canvasH
	}
	destX := evenOffset((canvasW - destW) / 2)
	destY := evenOffset((canvasH - destH) / 2)

	return Layout{
		CanvasSize: image.Point{X: canvasW, Y: canvasH},
		SourceRect: image.Rect(cropX, cropY, cropX+cropW, cropY+cropH),
		DestRect:   image.Rect(destX, destY, destX+destW, destY+destH),
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
