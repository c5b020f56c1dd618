package hierarchy

// Walk visits nodes depth-first in document order. Returning false from fn
// stops the walk.
func Walk(nodes []Node, fn func(n *Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []Node, depth int, fn func(n *Node, depth int) bool) bool {
	for i := range nodes {
		if !fn(&nodes[i], depth) {
			return false
		}
		if !walk(nodes[i].Children, depth+1, fn) {
			return false
		}
	}
	return true
}

// Count returns the total number of nodes in the tree.
func Count(nodes []Node) int {
	total := 0
	Walk(nodes, func(*Node, int) bool {
		total++
		return true
	})
	return total
}

// Find returns the first node with the given id.
func Find(nodes []Node, id string) (*Node, bool) {
	var found *Node
	Walk(nodes, func(n *Node, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// RefStats summarizes cross-references in a tree.
type RefStats struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	Resolved int `json:"resolved"` // internal refs whose target id exists
	Dangling int `json:"dangling"`
}

// ReferenceStats counts references and resolves internal targets against the
// ids present in the tree.
func ReferenceStats(nodes []Node) RefStats {
	ids := make(map[string]bool)
	Walk(nodes, func(n *Node, _ int) bool {
		ids[n.ID] = true
		return true
	})

	var st RefStats
	Walk(nodes, func(n *Node, _ int) bool {
		for _, r := range n.References {
			if r.Type == RefExternal || r.Target == RefExternal {
				st.External++
				continue
			}
			st.Internal++
			if ids[r.Target] {
				st.Resolved++
			} else {
				st.Dangling++
			}
		}
		return true
	})
	return st
}
