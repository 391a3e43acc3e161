package merkle

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/protolambda/ztyp/tree"
)

var (
	ErrInvalidDepth    = errors.New("invalid merkle depth")
	ErrIndexOutOfRange = errors.New("leaf index out of range")
)

// hFn combines two 32-byte nodes as sha256(left || right), the same
// commitment used when checking roots against circuit-computed values.
var hFn = tree.GetHashFn()

// Path proves inclusion of one leaf under a root. Siblings and Directions
// have exactly the tree depth as length. Direction 0 means the sibling sits
// to the right (current node is the left child), 1 means the sibling sits
// to the left.
type Path struct {
	Siblings   []tree.Root `json:"siblings"`
	Directions []byte      `json:"directions"`
}

// HashLeaf maps a raw leaf into the bottom level of the tree.
func HashLeaf(leaf tree.Root) tree.Root {
	return sha256.Sum256(leaf[:])
}

// BuildTree pads leaves to 2^depth, hashes each leaf and combines adjacent
// pairs bottom-up. Padding repeats the last leaf, or the zero leaf when the
// input is empty. An unpaired node at an odd level is combined with itself.
func BuildTree(leaves []tree.Root, depth int) (tree.Root, error) {
	level, err := leafLevel(leaves, depth)
	if err != nil {
		return tree.Root{}, err
	}
	for len(level) > 1 {
		level = combineLevel(level)
	}
	return level[0], nil
}

// DerivePath records the sibling and its position at every level for the
// leaf at leafIndex, using the exact level-by-level hashing of BuildTree.
func DerivePath(leaves []tree.Root, leafIndex int, depth int) (*Path, error) {
	if leafIndex < 0 || leafIndex >= len(leaves) {
		return nil, fmt.Errorf("%w: index %d with %d leaves", ErrIndexOutOfRange, leafIndex, len(leaves))
	}
	level, err := leafLevel(leaves, depth)
	if err != nil {
		return nil, err
	}

	path := &Path{
		Siblings:   make([]tree.Root, depth),
		Directions: make([]byte, depth),
	}
	index := leafIndex
	for lvl := 0; lvl < depth; lvl++ {
		siblingIdx := index ^ 1
		if siblingIdx >= len(level) {
			// unpaired node combines with itself
			siblingIdx = index
		}
		path.Siblings[lvl] = level[siblingIdx]
		path.Directions[lvl] = byte(index & 1)

		level = combineLevel(level)
		index /= 2
	}
	return path, nil
}

// VerifyPath replays the combine steps from hash(leaf) along the recorded
// directions and reports whether the final node equals root.
func VerifyPath(leaf tree.Root, path *Path, root tree.Root) bool {
	if path == nil || len(path.Siblings) != len(path.Directions) {
		return false
	}
	node := HashLeaf(leaf)
	for i, sibling := range path.Siblings {
		if path.Directions[i] == 0 {
			node = hFn(node, sibling)
		} else {
			node = hFn(sibling, node)
		}
	}
	return node == root
}

// leafLevel validates depth, pads the leaf set to 2^depth and hashes it.
func leafLevel(leaves []tree.Root, depth int) ([]tree.Root, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: depth %d", ErrInvalidDepth, depth)
	}
	size := 1 << depth
	if len(leaves) > size {
		return nil, fmt.Errorf("%w: %d leaves exceed capacity 2^%d", ErrInvalidDepth, len(leaves), depth)
	}

	padded := make([]tree.Root, size)
	copy(padded, leaves)
	pad := tree.Root{}
	if len(leaves) > 0 {
		pad = leaves[len(leaves)-1]
	}
	for i := len(leaves); i < size; i++ {
		padded[i] = pad
	}

	level := make([]tree.Root, size)
	for i, leaf := range padded {
		level[i] = HashLeaf(leaf)
	}
	return level, nil
}

func combineLevel(level []tree.Root) []tree.Root {
	next := make([]tree.Root, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		right := i + 1
		if right == len(level) {
			right = i
		}
		next[i/2] = hFn(level[i], level[right])
	}
	return next
}
