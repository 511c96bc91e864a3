package varsym

// DataID indexes into a DataTree's arena of immutable nodes (§9: "The
// macro-parameter tree is naturally an arena of immutable nodes with child
// index ranges; 'dummy' becomes a sentinel index").
type DataID int

// Dummy is the sentinel index standing in for a missing child: reading it
// always yields the default value (§3.5 "missing children evaluate to a
// dummy that returns the default value").
const Dummy DataID = -1

// node is either a leaf (a string) or a composite (an ordered list of child
// DataIDs). Once built, nodes are never mutated — only DataTree.Append grows
// the arena.
type node struct {
	leaf     bool
	value    string
	children []DataID
}

// DataTree is an immutable arena of macro-parameter data nodes, shared by
// every depth of one macro-parameter tree instance (§3.5 "Macro-parameter
// data form an immutable tree").
type DataTree struct {
	nodes []node
}

// NewDataTree creates an empty arena.
func NewDataTree() *DataTree { return &DataTree{} }

// Leaf appends a leaf node carrying s and returns its ID.
func (t *DataTree) Leaf(s string) DataID {
	id := DataID(len(t.nodes))
	t.nodes = append(t.nodes, node{leaf: true, value: s})
	return id
}

// Composite appends a composite node with the given ordered children and
// returns its ID. Dummy entries are valid children, standing in for an
// absent positional/keyword argument.
func (t *DataTree) Composite(children ...DataID) DataID {
	id := DataID(len(t.nodes))
	cp := append([]DataID(nil), children...)
	t.nodes = append(t.nodes, node{children: cp})
	return id
}

// Value returns the leaf string for id, or "" for a Dummy or composite node
// (the default-value fallback, §3.5).
func (t *DataTree) Value(id DataID) string {
	if id == Dummy || int(id) >= len(t.nodes) {
		return ""
	}
	n := t.nodes[id]
	if n.leaf {
		return n.value
	}
	return ""
}

// Count returns the number of children of a composite node id, 0 for a
// Dummy, and 1 for a leaf (a scalar "has one element", matching how
// macro-parameter NUMBER/COUNT treat a bare value as a single-element list).
func (t *DataTree) Count(id DataID) int {
	if id == Dummy || int(id) >= len(t.nodes) {
		return 0
	}
	n := t.nodes[id]
	if n.leaf {
		return 1
	}
	return len(n.children)
}

// Child returns the i-th (1-based) child of a composite node, or Dummy if
// id isn't composite or i is out of range.
func (t *DataTree) Child(id DataID, i int) DataID {
	if id == Dummy || int(id) >= len(t.nodes) || i < 1 {
		return Dummy
	}
	n := t.nodes[id]
	if n.leaf || i > len(n.children) {
		return Dummy
	}
	return n.children[i-1]
}

// ParamFlavor distinguishes how a macro parameter is addressed (§3.5).
type ParamFlavor int

const (
	FlavorPositional ParamFlavor = iota
	FlavorKeyword
	FlavorSysList
)

// MacroParams is the nested macro-parameter data for one macro-call depth:
// the name-field value (SYSLIST(0)), the ordered positional operands, and
// named keyword operands, all backed by one shared DataTree.
type MacroParams struct {
	Tree       *DataTree
	NameField  DataID
	Positional []DataID
	Keyword    map[string]DataID
}

// NewMacroParams builds a MacroParams for one call, given the resolved
// name-field text and positional operand data IDs.
func NewMacroParams(tree *DataTree, nameField string, positional []DataID) *MacroParams {
	return &MacroParams{
		Tree:       tree,
		NameField:  tree.Leaf(nameField),
		Positional: positional,
		Keyword:    make(map[string]DataID),
	}
}

// SysList resolves a SYSLIST reference (§4.F): index 0 yields the name
// field; index n>0 is the n-th positional operand; further indices descend
// into composite data (nested SYSLIST(n, m, ...)).
func (p *MacroParams) SysList(indices ...int) DataID {
	if len(indices) == 0 {
		return Dummy
	}
	first := indices[0]
	var cur DataID
	if first == 0 {
		cur = p.NameField
	} else if first >= 1 && first <= len(p.Positional) {
		cur = p.Positional[first-1]
	} else {
		return Dummy
	}
	for _, idx := range indices[1:] {
		cur = p.Tree.Child(cur, idx)
	}
	return cur
}

// Positional0 returns the n-th (1-based) positional parameter's data,
// Dummy if out of range.
func (p *MacroParams) Positional0(n int) DataID {
	if n < 1 || n > len(p.Positional) {
		return Dummy
	}
	return p.Positional[n-1]
}
