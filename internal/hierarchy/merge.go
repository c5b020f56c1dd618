package hierarchy

// MergeNodes folds incoming into existing and returns the merged sequence.
// A node whose id is already present is merged into it: text joined with a
// single space, references appended (duplicates kept), children merged by the
// same rule. New ids are appended in arrival order. Inputs are not modified.
func MergeNodes(existing []Node, incoming ...Node) []Node {
	out := make([]Node, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))
	for _, n := range existing {
		out = appendOrMerge(out, pos, n)
	}
	for _, n := range incoming {
		out = appendOrMerge(out, pos, n)
	}
	return out
}

func appendOrMerge(out []Node, pos map[string]int, n Node) []Node {
	if n.ID != "" {
		if i, ok := pos[n.ID]; ok {
			out[i] = mergeNode(out[i], n)
			return out
		}
		pos[n.ID] = len(out)
	}
	return append(out, n.Clone())
}

func mergeNode(dst, src Node) Node {
	merged := dst.Clone()
	merged.Text = joinText(dst.Text, src.Text)
	merged.References = append(merged.References, src.References...)
	merged.Children = MergeNodes(dst.Children, src.Children...)
	return merged
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
