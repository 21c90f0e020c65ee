package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"sort"
	"sync"

	"clip-studio/internal/progress"
	"clip-studio/internal/workers"
)

const (
	gifMaxColors = 256

	// gifSampleStride subsamples pixels during the histogram pass. The
	// palette is built from roughly one pixel in gifSampleStride.
	gifSampleStride = 7
)

// gifEncoder accumulates sampled frames and encodes them with a palette
// shared across the whole animation. Two passes: a histogram pass over all
// frames builds the palette, then every frame is quantized against it.
// Output depends only on the frames, never on timing or scheduling.
type gifEncoder struct {
	width   int
	height  int
	frameCS float64 // exact per-frame duration in centiseconds
	frames  []*image.NRGBA
}

// newGIFEncoder creates an encoder for frames sampled every sampleEvery
// replayed frames at the given replay frame rate.
func newGIFEncoder(width, height, sampleEvery, frameRate int) *gifEncoder {
	if sampleEvery < 1 {
		sampleEvery = 1
	}
	if frameRate <= 0 {
		frameRate = GIFFrameRate
	}
	frameCS := 100 * float64(sampleEvery) / float64(frameRate)
	if frameCS < 2 {
		frameCS = 2
	}
	return &gifEncoder{width: width, height: height, frameCS: frameCS}
}

// AddFrame appends one frame. The encoder takes ownership of the pixel data.
func (g *gifEncoder) AddFrame(frame *image.NRGBA) {
	g.frames = append(g.frames, frame)
}

// FrameCount returns the number of accumulated frames.
func (g *gifEncoder) FrameCount() int {
	return len(g.frames)
}

// Encode runs the palette and quantization passes and returns the GIF bytes.
func (g *gifEncoder) Encode() ([]byte, error) {
	if len(g.frames) == 0 {
		return nil, fmt.Errorf("%w: no frames sampled", progress.ErrEmptyResult)
	}

	pal := buildPalette(g.frames)

	out := &gif.GIF{
		Image:     make([]*image.Paletted, len(g.frames)),
		Delay:     g.delays(),
		LoopCount: 0,
	}

	// Quantize frames in parallel. Each frame depends only on the shared
	// palette, so the result is independent of worker scheduling.
	n := workers.ForCPU(len(g.frames))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			memo := make(map[uint16]uint8)
			for i := range jobs {
				out.Image[i] = quantize(g.frames[i], pal, memo)
			}
		}()
	}
	for i := range g.frames {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("%w: gif encode: %v", progress.ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// delays distributes the exact per-frame duration over integer centisecond
// delays, carrying the fractional remainder forward so the animation runtime
// stays within one centisecond of the sampled duration.
func (g *gifEncoder) delays() []int {
	out := make([]int, len(g.frames))
	var elapsed float64
	emitted := 0
	for i := range out {
		elapsed += g.frameCS
		d := int(math.Round(elapsed)) - emitted
		if d < 2 {
			d = 2
		}
		out[i] = d
		emitted += d
	}
	return out
}

// bucket collapses a color to 15-bit RGB, the histogram granularity.
func bucket(r, g, b uint8) uint16 {
	return uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
}

func bucketColor(k uint16) color.RGBA {
	expand := func(v uint16) uint8 {
		// Center of the 8-value bucket.
		return uint8(v<<3 | 4)
	}
	return color.RGBA{
		R: expand(k >> 10 & 0x1f),
		G: expand(k >> 5 & 0x1f),
		B: expand(k & 0x1f),
		A: 255,
	}
}

// buildPalette histograms a pixel sample of every frame and keeps the most
// populous color buckets. Ties break on bucket value, keeping the palette
// deterministic for identical input.
func buildPalette(frames []*image.NRGBA) color.Palette {
	hist := make(map[uint16]int)
	for _, f := range frames {
		for i := 0; i < len(f.Pix); i += 4 * gifSampleStride {
			hist[bucket(f.Pix[i], f.Pix[i+1], f.Pix[i+2])]++
		}
	}

	keys := make([]uint16, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if hist[keys[i]] != hist[keys[j]] {
			return hist[keys[i]] > hist[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > gifMaxColors {
		keys = keys[:gifMaxColors]
	}

	pal := make(color.Palette, len(keys))
	for i, k := range keys {
		pal[i] = bucketColor(k)
	}
	return pal
}

// quantize maps one frame onto the palette. memo caches bucket-to-index
// lookups across frames handled by the same worker.
func quantize(frame *image.NRGBA, pal color.Palette, memo map[uint16]uint8) *image.Paletted {
	b := frame.Bounds()
	out := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
	for y := 0; y < b.Dy(); y++ {
		row := frame.Pix[y*frame.Stride : y*frame.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			// Pixels collapse to their bucket center before the palette
			// lookup, so a bucket always maps to the same index no matter
			// which worker sees it first.
			k := bucket(row[x*4], row[x*4+1], row[x*4+2])
			idx, ok := memo[k]
			if !ok {
				idx = uint8(pal.Index(bucketColor(k)))
				memo[k] = idx
			}
			out.Pix[y*out.Stride+x] = idx
		}
	}
	return out
}
