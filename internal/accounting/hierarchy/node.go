package hierarchy

import (
	"github.com/shopspring/decimal"

	"github.com/ksfraser/ksf-reports/internal/accounting"
)

// NodeKind identifies the level of a node in the chart of accounts.
type NodeKind string

const (
	KindRoot    NodeKind = "root"
	KindClass   NodeKind = "class"
	KindType    NodeKind = "type"
	KindAccount NodeKind = "account"
)

// Node is one line of a hierarchical report. A node owns its children.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Class    accounting.ClassKind
	Code     string
	Amounts  map[string]decimal.Decimal
	Children []*Node
	Material bool
}

func newNode(id, label string, kind NodeKind, class accounting.ClassKind, windows []string) *Node {
	n := &Node{ID: id, Label: label, Kind: kind, Class: class, Amounts: make(map[string]decimal.Decimal, len(windows))}
	for _, w := range windows {
		n.Amounts[w] = decimal.Zero
	}
	return n
}

// Amount returns the node total for a window, zero when absent.
func (n *Node) Amount(window string) decimal.Decimal {
	if n == nil {
		return decimal.Zero
	}
	return n.Amounts[window]
}

// add accumulates child amounts into n.
func (n *Node) add(child *Node) {
	for w, v := range child.Amounts {
		n.Amounts[w] = n.Amounts[w].Add(v)
	}
	n.Children = append(n.Children, child)
}

// markMaterial sets Material when any window reaches the threshold.
func (n *Node) markMaterial(threshold decimal.Decimal) {
	n.Material = false
	for _, v := range n.Amounts {
		if v.Abs().GreaterThanOrEqual(threshold) {
			n.Material = true
			return
		}
	}
}

// Visit calls fn for n and every descendant in pre-order.
func (n *Node) Visit(fn func(node *Node, depth int)) {
	n.visit(fn, 0)
}

func (n *Node) visit(fn func(*Node, int), depth int) {
	if n == nil {
		return
	}
	fn(n, depth)
	for _, c := range n.Children {
		c.visit(fn, depth+1)
	}
}

// Find returns the first node with the given id.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Visit(func(node *Node, _ int) {
		if found == nil && node.ID == id {
			found = node
		}
	})
	return found
}

// Accounts returns the account leaves below n in display order.
func (n *Node) Accounts() []*Node {
	var out []*Node
	n.Visit(func(node *Node, _ int) {
		if node.Kind == KindAccount {
			out = append(out, node)
		}
	})
	return out
}

// Prune returns a copy of the tree without immaterial subtrees. A node whose
// amounts are all within materiality is dropped with its children, even when
// some of them are material on their own; the root always stays. Amounts are
// copied unchanged.
func (n *Node) Prune() *Node {
	if n == nil {
		return nil
	}
	out, _ := n.prune(true)
	return out
}

func (n *Node) prune(root bool) (*Node, bool) {
	if !root && !n.Material {
		return nil, false
	}
	cp := &Node{
		ID:       n.ID,
		Label:    n.Label,
		Kind:     n.Kind,
		Class:    n.Class,
		Code:     n.Code,
		Material: n.Material,
		Amounts:  make(map[string]decimal.Decimal, len(n.Amounts)),
	}
	for w, v := range n.Amounts {
		cp.Amounts[w] = v
	}
	for _, c := range n.Children {
		if child, ok := c.prune(false); ok {
			cp.Children = append(cp.Children, child)
		}
	}
	return cp, true
}

// Clone deep-copies the tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		ID:       n.ID,
		Label:    n.Label,
		Kind:     n.Kind,
		Class:    n.Class,
		Code:     n.Code,
		Material: n.Material,
		Amounts:  make(map[string]decimal.Decimal, len(n.Amounts)),
	}
	for w, v := range n.Amounts {
		cp.Amounts[w] = v
	}
	for _, c := range n.Children {
		cp.Children = append(cp.Children, c.Clone())
	}
	return cp
}
