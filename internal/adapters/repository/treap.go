package repository

import "math/rand/v2"

// riskIndex is a treap ordered by risk score DESC, then student ID ASC.
// In-order traversal yields the triage list from most to least at risk.
type riskIndex struct {
	root *node
}

type node struct {
	id    string
	risk  int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// before reports whether (aRisk, aID) ranks ahead of (bRisk, bID).
func before(aRisk int, aID string, bRisk int, bID string) bool {
	if aRisk != bRisk {
		return aRisk > bRisk
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, risk int, prio uint64) *node {
	if n == nil {
		return &node{id: id, risk: risk, prio: prio, size: 1}
	}
	if before(risk, id, n.risk, n.id) {
		n.left = insert(n.left, id, risk, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, risk, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, id string, risk int) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.id == id && n.risk == risk:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, id, risk)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, id, risk)
		}
	case before(risk, id, n.risk, n.id):
		n.left = remove(n.left, id, risk)
	default:
		n.right = remove(n.right, id, risk)
	}
	fix(n)
	return n
}

// collect appends up to limit IDs in triage order.
func collect(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

// position returns the 1-based triage position of (id, risk), or 0 if absent.
func position(n *node, id string, risk int) int {
	offset := 0
	for n != nil {
		switch {
		case n.id == id && n.risk == risk:
			return offset + nsize(n.left) + 1
		case before(risk, id, n.risk, n.id):
			n = n.left
		default:
			offset += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

func (ix *riskIndex) upsert(id string, oldRisk int, hadOld bool, risk int) {
	if hadOld {
		ix.root = remove(ix.root, id, oldRisk)
	}
	ix.root = insert(ix.root, id, risk, rand.Uint64())
}

func (ix *riskIndex) top(n int) []string {
	out := make([]string, 0, min(n, nsize(ix.root)))
	collect(ix.root, n, &out)
	return out
}

func (ix *riskIndex) rank(id string, risk int) int { return position(ix.root, id, risk) }

func (ix *riskIndex) size() int { return nsize(ix.root) }
