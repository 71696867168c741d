// Package ensemble provides CART regression trees and a bagged random forest.
//
// Trees are stored as a flat node list so a fitted forest encodes compactly
// with gob or JSON:
//
//	forest := ensemble.NewRandomForestRegressor(ensemble.WithRandomState(101))
//	err := forest.Fit(X, y)
//	pred, err := forest.Predict(XTest)
package ensemble

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// A Node represents a splitting decision of the form "x[FeatureIndex] < Threshold ?".
type Node struct {
	// FeatureIndex indicates which feature is used in this splitting decision
	FeatureIndex int `json:"feature_index"`
	// Threshold indicates the cutoff value between the left and right subtrees
	Threshold float64 `json:"threshold"`
	// LeftChild is the index of the left subtree in Nodes, or in Outputs when LeftIsLeaf
	LeftChild int `json:"left_child"`
	// LeftIsLeaf indicates whether the left subtree is a leaf
	LeftIsLeaf bool `json:"left_is_leaf"`
	// RightChild is the index of the right subtree in Nodes, or in Outputs when RightIsLeaf
	RightChild int `json:"right_child"`
	// RightIsLeaf indicates whether the right subtree is a leaf
	RightIsLeaf bool `json:"right_is_leaf"`
}

// Tree is a fitted regression tree. A tree without nodes is a single leaf.
type Tree struct {
	// Nodes is a flat list of all split nodes; Nodes[0] is the root
	Nodes []Node `json:"nodes"`
	// Outputs holds the mean target of each leaf
	Outputs []float64 `json:"outputs"`
	// FeatureSize is the length of feature vectors processed by this tree
	FeatureSize int `json:"feature_size"`
	// Depth is the maximum depth of any leaf in the tree
	Depth int `json:"depth"`
}

// Leaf drops a feature vector down the tree and returns the index of its leaf.
func (t *Tree) Leaf(x []float64) int {
	if len(t.Nodes) == 0 {
		return 0
	}
	cur := t.Nodes[0]
	for {
		if x[cur.FeatureIndex] < cur.Threshold {
			if cur.LeftIsLeaf {
				return cur.LeftChild
			}
			cur = t.Nodes[cur.LeftChild]
		} else {
			if cur.RightIsLeaf {
				return cur.RightChild
			}
			cur = t.Nodes[cur.RightChild]
		}
	}
}

// Evaluate returns the output of the leaf x falls into.
func (t *Tree) Evaluate(x []float64) float64 {
	return t.Outputs[t.Leaf(x)]
}

// TreeParams controls tree growth.
type TreeParams struct {
	// MaxDepth limits the depth of the tree; <= 0 means unlimited
	MaxDepth int
	// MinSamplesSplit is the minimum number of samples required to split a node
	MinSamplesSplit int
	// MinSamplesLeaf is the minimum number of samples required in each leaf
	MinSamplesLeaf int
}

func (p TreeParams) validate() error {
	if p.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.MinSamplesLeaf)
	}
	return nil
}

// minImpurityDecrease below which a split is not worth making.
const minImpurityDecrease = 1e-12

// treeBuilder grows one tree over a row-major feature table.
type treeBuilder struct {
	X      [][]float64
	y      []float64
	params TreeParams

	nodes   []Node
	outputs []float64
	depth   int
}

// buildTree grows a tree on the samples listed in idx. idx may contain
// repeated indices (bootstrap samples) and is reordered in place.
func buildTree(X [][]float64, y []float64, idx []int, params TreeParams) Tree {
	b := &treeBuilder{X: X, y: y, params: params}
	b.grow(idx, 0)
	featureSize := 0
	if len(X) > 0 {
		featureSize = len(X[0])
	}
	return Tree{Nodes: b.nodes, Outputs: b.outputs, FeatureSize: featureSize, Depth: b.depth}
}

func (b *treeBuilder) leaf(idx []int, depth int) (int, bool) {
	sum := 0.0
	for _, i := range idx {
		sum += b.y[i]
	}
	b.outputs = append(b.outputs, sum/float64(len(idx)))
	b.depth = max(b.depth, depth)
	return len(b.outputs) - 1, true
}

func (b *treeBuilder) grow(idx []int, depth int) (int, bool) {
	n := len(idx)
	if n < b.params.MinSamplesSplit || n < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return b.leaf(idx, depth)
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return b.leaf(idx, depth)
	}

	// idx を左 (x < threshold) と右に分割する
	split := 0
	for k, i := range idx {
		if b.X[i][feature] < threshold {
			idx[split], idx[k] = idx[k], idx[split]
			split++
		}
	}

	pos := len(b.nodes)
	b.nodes = append(b.nodes, Node{FeatureIndex: feature, Threshold: threshold})
	left, leftLeaf := b.grow(idx[:split], depth+1)
	right, rightLeaf := b.grow(idx[split:], depth+1)
	b.nodes[pos].LeftChild, b.nodes[pos].LeftIsLeaf = left, leftLeaf
	b.nodes[pos].RightChild, b.nodes[pos].RightIsLeaf = right, rightLeaf
	return pos, false
}

// bestSplit searches every feature for the threshold that minimises the
// summed squared error of the two children.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	total := 0.0
	for _, i := range idx {
		total += b.y[i]
	}
	parentScore := total * total / float64(n)

	bestScore := parentScore + minImpurityDecrease*max(1, math.Abs(parentScore))
	sorted := make([]int, n)
	minLeaf := b.params.MinSamplesLeaf

	for j := range b.X[idx[0]] {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(a, c int) int {
			switch va, vc := b.X[a][j], b.X[c][j]; {
			case va < vc:
				return -1
			case va > vc:
				return 1
			default:
				return 0
			}
		})
		if b.X[sorted[0]][j] == b.X[sorted[n-1]][j] {
			continue
		}

		leftSum := 0.0
		for k := 0; k < n-1; k++ {
			leftSum += b.y[sorted[k]]
			nLeft := k + 1
			nRight := n - nLeft
			if nLeft < minLeaf {
				continue
			}
			if nRight < minLeaf {
				break
			}
			lo, hi := b.X[sorted[k]][j], b.X[sorted[k+1]][j]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(nLeft) + rightSum*rightSum/float64(nRight)
			if score > bestScore {
				bestScore = score
				feature = j
				threshold = lo + (hi-lo)/2
				if threshold <= lo {
					threshold = hi
				}
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// rowsOf copies a matrix into a row-major table.
func rowsOf(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			rows[i][j] = X.At(i, j)
		}
	}
	return rows
}

func checkFitInput(op string, X, y mat.Matrix) (int, int, error) {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := errors.CheckMatrix(op, X, rows, cols); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op, y, yRows, 1); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}
