package geom

// SplitMode says which of the two ISPs can see a measurement window.
type SplitMode int

const (
	LeftOnly SplitMode = iota
	RightOnly
	Split
	FullSpan // AF only; the window is wide enough that both ISPs see all of it
)

func (m SplitMode) String() string {
	switch m {
	case LeftOnly:
		return "left"
	case RightOnly:
		return "right"
	case Split:
		return "split"
	case FullSpan:
		return "full"
	default:
		return "???"
	}
}

func (m SplitMode) IsValid() bool { return m >= LeftOnly && m <= FullSpan }

// Classify decides which ISP(s) a window belongs to. Windows that
// cross the seam are split, unless they only barely cross it: we
// compare the window's size against the size it would have if it
// were left (or right) only, and against the size it would have if it
// were split evenly at the overlap, and go with whichever is closer.
func Classify(w Window, p IspPair) SplitMode {
	ed := w.HOffs + w.HSize
	mid := w.HOffs + w.HSize/2

	switch {
	case ed <= p.Left.W:
		return LeftOnly
	case w.HOffs >= p.Right.X:
		return RightOnly
	case mid <= p.Left.W && mid >= p.Right.X:
		return Split
	case mid < p.Right.X:
		asLeft := p.Left.W - w.HOffs
		asSplit := (p.Right.X - w.HOffs) * 2
		if absInt(w.HSize-asLeft) < absInt(w.HSize-asSplit) {
			return LeftOnly
		}
		return Split
	default:
		asRight := ed - p.Right.X
		asSplit := (ed - p.Left.W) * 2
		if absInt(w.HSize-asRight) < absInt(w.HSize-asSplit) {
			return RightOnly
		}
		return Split
	}
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
