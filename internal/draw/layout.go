package draw

// StyleTier is the visual density bucket for winner cards. The display scales
// avatar, font and padding down one discrete step at a time as the grid gets
// denser; the exact pixel values per tier belong to the frontend theme.
type StyleTier string

const (
	StyleHero    StyleTier = "hero"    // single card filling the stage
	StyleLarge   StyleTier = "large"   // one sparse row
	StyleMedium  StyleTier = "medium"  // up to two comfortable rows
	StyleSmall   StyleTier = "small"   // dense two or three rows
	StyleCompact StyleTier = "compact" // maximum density, four full rows
)

// Layout is a row partition for displaying n winner cards on one screen
// without scrolling, plus the density tier the cards should render at.
type Layout struct {
	Rows  []int     `json:"rows"`
	Style StyleTier `json:"style"`
}

// Hand-tuned partitions for small counts, chosen so rows stay visually
// balanced and no row is left with a single undersized orphan card.
var smallLayouts = map[int][]int{
	1:  {1},
	2:  {2},
	3:  {3},
	4:  {4},
	5:  {3, 2},
	6:  {3, 3},
	7:  {4, 3},
	8:  {4, 4},
	9:  {3, 3, 3},
	10: {5, 5},
	11: {4, 4, 3},
	12: {4, 4, 4},
	13: {5, 4, 4},
	14: {5, 5, 4},
	15: {5, 5, 5},
	16: {4, 4, 4, 4},
	17: {5, 4, 4, 4},
	18: {6, 6, 6},
	19: {5, 5, 5, 4},
	20: {5, 5, 5, 5},
}

const (
	layoutMaxRows = 4
	layoutMaxCols = 8
)

// optimalRows returns the per-row card counts for n cards. Small counts use
// the lookup table; above 20 the partition aims for at most 4 rows of at most
// 8 columns, the final row taking the remainder. The column cap wins when the
// two conflict, so counts past the 32-card stage capacity spill into extra
// rows of 8 rather than widening past what the screen can fit.
func optimalRows(n int) []int {
	if n <= 0 {
		return nil
	}
	if rows, ok := smallLayouts[n]; ok {
		out := make([]int, len(rows))
		copy(out, rows)
		return out
	}

	cols := (n + layoutMaxRows - 1) / layoutMaxRows
	if cols > layoutMaxCols {
		cols = layoutMaxCols
	}
	rowCount := (n + cols - 1) / cols

	rows := make([]int, 0, rowCount)
	remaining := n
	for i := 0; i < rowCount; i++ {
		size := cols
		if remaining < size {
			size = remaining
		}
		rows = append(rows, size)
		remaining -= size
	}
	return rows
}

// ComputeLayout returns the row partition and style tier for n cards.
// Invariants: the rows sum to n, no row is empty, and up to the 32-card stage
// capacity there are at most 4 rows.
func ComputeLayout(n int) Layout {
	rows := optimalRows(n)
	maxCols := 0
	for _, r := range rows {
		if r > maxCols {
			maxCols = r
		}
	}
	return Layout{Rows: rows, Style: styleFor(len(rows), maxCols)}
}

// styleFor is a step function of (rowCount, maxCols): more rows or more
// columns selects the next smaller tier.
func styleFor(rowCount, maxCols int) StyleTier {
	switch {
	case rowCount <= 1:
		switch {
		case maxCols <= 1:
			return StyleHero
		case maxCols <= 2:
			return StyleLarge
		case maxCols <= 4:
			return StyleMedium
		default:
			return StyleSmall
		}
	case rowCount == 2:
		if maxCols <= 5 {
			return StyleMedium
		}
		return StyleSmall
	case rowCount == 3:
		if maxCols <= 4 {
			return StyleSmall
		}
		return StyleCompact
	default:
		return StyleCompact
	}
}

// NeedsSpecialLayout reports whether the n-card layout is irregular (rows of
// unequal length), in which case the display must render rows individually
// instead of as a uniform grid.
func NeedsSpecialLayout(n int) bool {
	rows := optimalRows(n)
	for _, r := range rows {
		if r != rows[0] {
			return true
		}
	}
	return false
}
