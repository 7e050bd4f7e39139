package services

import "splitstream/internal/core/domain"

// Layout maps a pane count to the grid arrangement:
// 1, 2 and 3 panes sit in a single row, four panes form a 2x2 block and
// five or more wrap three per row.
func Layout(size int) domain.LayoutDescriptor {
	switch {
	case size <= 0:
		return domain.LayoutDescriptor{Empty: true}
	case size == 4:
		return domain.LayoutDescriptor{Columns: 2, Rows: 2}
	case size < 4:
		return domain.LayoutDescriptor{Columns: size, Rows: 1}
	default:
		return domain.LayoutDescriptor{Columns: 3, Rows: (size + 2) / 3}
	}
}
