// Package layout computes tile rectangles for the wall. The mosaic mode is a
// justified-gallery row packing: tiles are partitioned into rows, each row is
// stretched to full width, and row heights are uniformly scaled so the rows
// exactly cover the container. The vertical scaling distorts effective aspect
// ratios; that trade-off is intentional, gap-free coverage wins and the video
// elements letterbox internally.
package layout

import (
	"math"
)

// Mode selects the wall layout strategy
type Mode string

const (
	ModeMosaic Mode = "mosaic"
	ModeGrid   Mode = "grid"
)

// rowBias skews the target row count toward landscape-ish walls.
const rowBias = 1.6

// DefaultAspect is used for tiles with unknown dimensions.
const DefaultAspect = 16.0 / 9.0

// Rect is one tile's position, in percent of the container
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Compute returns one rect per tile for the given mode. Output order matches
// the aspects slice (row-major for mosaic).
func Compute(mode Mode, aspects []float64) []Rect {
	if mode == ModeGrid {
		return PackGrid(len(aspects))
	}
	return PackRows(aspects)
}

// PackRows produces the mosaic layout. Deterministic: identical inputs yield
// identical rects. Non-positive or NaN aspects fall back to 16:9.
func PackRows(aspects []float64) []Rect {
	count := len(aspects)
	if count == 0 {
		return []Rect{}
	}

	normalized := make([]float64, count)
	for i, a := range aspects {
		if a <= 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			a = DefaultAspect
		}
		normalized[i] = a
	}

	rowCount := int(math.Round(math.Sqrt(float64(count) / rowBias)))
	if rowCount < 1 {
		rowCount = 1
	}
	if rowCount > count {
		rowCount = count
	}

	// Distribute tiles across rows as evenly as possible; the first
	// count%rowCount rows take one extra.
	base := count / rowCount
	extra := count % rowCount
	rowSizes := make([]int, rowCount)
	for r := range rowSizes {
		rowSizes[r] = base
		if r < extra {
			rowSizes[r]++
		}
	}

	// Natural row heights: a row stretched to 100% width has height
	// 100 / sum(aspects in row).
	rowSums := make([]float64, rowCount)
	rowHeights := make([]float64, rowCount)
	totalNaturalHeight := 0.0
	idx := 0
	for r, size := range rowSizes {
		sum := 0.0
		for i := 0; i < size; i++ {
			sum += normalized[idx+i]
		}
		idx += size
		rowSums[r] = sum
		rowHeights[r] = 100.0 / sum
		totalNaturalHeight += rowHeights[r]
	}

	// Scale rows uniformly so they exactly fill the container height.
	scale := 100.0 / totalNaturalHeight
	for r := range rowHeights {
		rowHeights[r] *= scale
	}

	rects := make([]Rect, 0, count)
	top := 0.0
	idx = 0
	for r, size := range rowSizes {
		height := rowHeights[r]
		if r == rowCount-1 {
			// Absorb floating-point residue so the last row reaches 100%.
			height = 100.0 - top
		}

		left := 0.0
		for i := 0; i < size; i++ {
			width := normalized[idx+i] / rowSums[r] * 100.0
			rects = append(rects, Rect{
				Left:   left,
				Top:    top,
				Width:  width,
				Height: height,
			})
			left += width
		}
		idx += size
		top += height
	}

	return rects
}

// PackGrid produces the uniform grid layout: equal cells in
// ceil(sqrt(count*1.6)) columns.
func PackGrid(count int) []Rect {
	if count == 0 {
		return []Rect{}
	}

	cols := int(math.Ceil(math.Sqrt(float64(count) * rowBias)))
	if cols < 1 {
		cols = 1
	}
	rows := (count + cols - 1) / cols

	cellWidth := 100.0 / float64(cols)
	cellHeight := 100.0 / float64(rows)

	rects := make([]Rect, 0, count)
	for i := 0; i < count; i++ {
		row := i / cols
		col := i % cols
		rects = append(rects, Rect{
			Left:   float64(col) * cellWidth,
			Top:    float64(row) * cellHeight,
			Width:  cellWidth,
			Height: cellHeight,
		})
	}

	return rects
}
