package repository

import "math/rand/v2"

// Treap ordered by (points DESC, tick ASC). In-order traversal yields the
// leaderboard from best to worst; subtree sizes give O(log n) ranks.

type key struct {
	points int64
	tick   int64
}

// before reports whether a ranks ahead of b.
func before(a, b key) bool {
	if a.points != b.points {
		return a.points > b.points
	}
	return a.tick < b.tick
}

type node struct {
	id    string
	key   key
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

func insert(n *node, id string, k key) *node {
	if n == nil {
		return &node{id: id, key: k, prio: rand.Uint64(), size: 1}
	}
	if before(k, n.key) {
		n.left = insert(n.left, id, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case k == n.key:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, k)
		}
	case before(k, n.key):
		n.left = remove(n.left, k)
	default:
		n.right = remove(n.right, k)
	}
	fix(n)
	return n
}

// position returns the number of nodes ranking ahead of k.
func position(n *node, k key) int {
	ahead := 0
	for n != nil {
		switch {
		case k == n.key:
			return ahead + nsize(n.left)
		case before(k, n.key):
			n = n.left
		default:
			ahead += nsize(n.left) + 1
			n = n.right
		}
	}
	return ahead
}

// walk visits up to limit ids in rank order.
func walk(n *node, limit int, visit func(id string)) int {
	if n == nil || limit <= 0 {
		return 0
	}
	seen := walk(n.left, limit, visit)
	if seen < limit {
		visit(n.id)
		seen++
	}
	if seen < limit {
		seen += walk(n.right, limit-seen, visit)
	}
	return seen
}
