package visibility

// Classify compares the facts of one node between the start and end scene.
// A nil Facts means the node was absent from that scene. Absence on one side
// always decides the direction, regardless of what the other side holds.
func Classify[N comparable](start, end *Facts[N]) Info[N] {
	info := Info[N]{
		StartVisibility: Unknown,
		EndVisibility:   Unknown,
	}
	if start != nil {
		info.StartVisibility = start.Visibility
		info.StartParent = start.Parent
	}
	if end != nil {
		info.EndVisibility = end.Visibility
		info.EndParent = end.Parent
	}

	if start != nil && end != nil {
		if info.StartVisibility == info.EndVisibility && info.StartParent == info.EndParent {
			return info
		}
		var zero N
		switch {
		case info.StartVisibility != info.EndVisibility:
			if info.StartVisibility == Visible {
				info.Changed = true
			} else if info.EndVisibility == Visible {
				info.FadeIn = true
				info.Changed = true
			}
			// invisible <-> gone is not a visibility change
		case info.EndParent == zero:
			info.Changed = true
		case info.StartParent == zero:
			info.FadeIn = true
			info.Changed = true
		}
	}

	switch {
	case start == nil && end == nil:
	case start == nil:
		info.FadeIn = true
		info.Changed = true
	case end == nil:
		info.FadeIn = false
		info.Changed = true
	}
	return info
}

// IsVisible reports whether facts describe a node that is visible and
// attached to a container.
func IsVisible[N comparable](facts *Facts[N]) bool {
	if facts == nil {
		return false
	}
	return facts.Visibility == Visible && facts.HasParent()
}
