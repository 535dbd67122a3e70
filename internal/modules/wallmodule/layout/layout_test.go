package layout

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestPackRows_Empty(t *testing.T) {
	assert.Empty(t, PackRows(nil))
	assert.Empty(t, PackRows([]float64{}))
}

func TestPackRows_SingleTileFillsContainer(t *testing.T) {
	rects := PackRows([]float64{16.0 / 9.0})
	require.Len(t, rects, 1)

	assert.InDelta(t, 0, rects[0].Left, epsilon)
	assert.InDelta(t, 0, rects[0].Top, epsilon)
	assert.InDelta(t, 100, rects[0].Width, epsilon)
	assert.InDelta(t, 100, rects[0].Height, epsilon)
}

// Every tile count from 1 to 30 with random aspect ratios must produce
// full-width rows and full-height coverage with no gaps.
func TestPackRows_CoverageForAllTileCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for count := 1; count <= 30; count++ {
		t.Run(fmt.Sprintf("count_%d", count), func(t *testing.T) {
			aspects := make([]float64, count)
			for i := range aspects {
				// Anything from tall portrait to wide landscape
				aspects[i] = 0.4 + rng.Float64()*2.4
			}

			rects := PackRows(aspects)
			require.Len(t, rects, count)

			assertCoverage(t, rects)
		})
	}
}

// assertCoverage groups rects into rows by Top and checks each row spans the
// full width, rows stack without gaps, and the final row ends at 100%.
func assertCoverage(t *testing.T, rects []Rect) {
	t.Helper()

	const eps = 1e-6

	top := 0.0
	i := 0
	for i < len(rects) {
		require.InDelta(t, top, rects[i].Top, eps, "row must start where the previous ended")

		rowTop := rects[i].Top
		rowHeight := rects[i].Height
		left := 0.0
		for i < len(rects) && math.Abs(rects[i].Top-rowTop) < eps {
			assert.InDelta(t, left, rects[i].Left, eps, "tiles must abut horizontally")
			assert.InDelta(t, rowHeight, rects[i].Height, eps, "row tiles share a height")
			left += rects[i].Width
			i++
		}
		assert.InDelta(t, 100.0, left, eps, "row must span full width")
		top = rowTop + rowHeight
	}
	assert.InDelta(t, 100.0, top, eps, "rows must cover full height")
}

func TestPackRows_Deterministic(t *testing.T) {
	aspects := []float64{1.78, 0.56, 1.0, 2.35, 1.33, 1.78, 0.75, 1.5, 1.78}

	first := PackRows(aspects)
	second := PackRows(aspects)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i], "identical inputs must yield identical rects")
	}
}

func TestPackRows_DefaultAspectForInvalidInput(t *testing.T) {
	// All-invalid aspects behave exactly like all-16:9
	invalid := PackRows([]float64{0, -1, math.NaN(), math.Inf(1)})
	fallback := PackRows([]float64{DefaultAspect, DefaultAspect, DefaultAspect, DefaultAspect})

	require.Equal(t, len(fallback), len(invalid))
	for i := range invalid {
		assert.InDelta(t, fallback[i].Width, invalid[i].Width, epsilon)
		assert.InDelta(t, fallback[i].Height, invalid[i].Height, epsilon)
	}
}

func TestPackRows_WidthProportionalToAspect(t *testing.T) {
	// Two tiles in one row: the wider aspect gets proportionally more width
	rects := PackRows([]float64{2.0, 1.0})
	require.Len(t, rects, 2)

	assert.InDelta(t, rects[0].Top, rects[1].Top, epsilon, "two tiles pack into a single row")
	assert.InDelta(t, 2.0, rects[0].Width/rects[1].Width, epsilon)
	assert.InDelta(t, 100.0, rects[0].Width+rects[1].Width, epsilon)
}

func TestPackRows_RowCountHeuristic(t *testing.T) {
	tests := []struct {
		count    int
		wantRows int
	}{
		{1, 1},
		{2, 1},
		{4, 2},
		{9, 2},
		{16, 3},
		{30, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("count_%d", tt.count), func(t *testing.T) {
			want := int(math.Round(math.Sqrt(float64(tt.count) / 1.6)))
			if want < 1 {
				want = 1
			}
			require.Equal(t, tt.wantRows, want, "test table drifted from heuristic")

			aspects := make([]float64, tt.count)
			for i := range aspects {
				aspects[i] = DefaultAspect
			}
			rects := PackRows(aspects)

			tops := map[float64]bool{}
			for _, r := range rects {
				tops[r.Top] = true
			}
			assert.Len(t, tops, tt.wantRows)
		})
	}
}

func TestPackGrid(t *testing.T) {
	assert.Empty(t, PackGrid(0))

	rects := PackGrid(9)
	require.Len(t, rects, 9)

	// ceil(sqrt(9*1.6)) = 4 columns, 3 rows
	assert.InDelta(t, 25.0, rects[0].Width, epsilon)
	assert.InDelta(t, 100.0/3.0, rects[0].Height, epsilon)

	// Row-major placement
	assert.InDelta(t, 0.0, rects[0].Left, epsilon)
	assert.InDelta(t, 25.0, rects[1].Left, epsilon)
	assert.InDelta(t, 0.0, rects[4].Left, epsilon)
	assert.InDelta(t, 100.0/3.0, rects[4].Top, epsilon)
}

func TestCompute_ModeSelection(t *testing.T) {
	aspects := []float64{1.0, 1.0, 1.0, 1.0}

	mosaic := Compute(ModeMosaic, aspects)
	grid := Compute(ModeGrid, aspects)

	assert.Equal(t, PackRows(aspects), mosaic)
	assert.Equal(t, PackGrid(4), grid)
}
