// Package ensemble implements the tree ensembles of the model table: a
// bagged random forest and a second-order gradient boosted tree model.
package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is a single node of a regression tree. Children are indices into
// Tree.Nodes; leaves have both set to -1.
type Node struct {
	SplitFeature int
	Threshold    float64
	Gain         float64
	LeftChild    int
	RightChild   int
	LeafValue    float64
	Count        int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a binary regression tree; values <= Threshold go left.
type Tree struct {
	Nodes    []Node
	MaxDepth int // depth reached while growing
}

// Predict makes a prediction for a single sample using this tree
func (t *Tree) Predict(features []float64) float64 {
	id := 0
	for {
		node := &t.Nodes[id]
		if node.IsLeaf() {
			return node.LeafValue
		}
		if features[node.SplitFeature] <= node.Threshold {
			id = node.LeftChild
		} else {
			id = node.RightChild
		}
	}
}

// NumLeaves counts the leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// growParams controls tree growth. With unit hessians and zero
// regularisation the gain is the squared-error reduction of CART and leaves
// hold the mean target.
type growParams struct {
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int
	MinChildWeight float64
	Lambda         float64 // L2 on leaf weights
	Alpha          float64 // L1 on leaf weights
	MaxFeatures    int     // features drawn per node; 0 means all
	LearningRate   float64 // folded into leaf values
}

type splitInfo struct {
	Feature   int
	Threshold float64
	Gain      float64
}

// grower holds the data for one tree.
type grower struct {
	rows   [][]float64
	grad   []float64
	hess   []float64
	params growParams
	rng    *rand.Rand
	nFeat  int
}

// thresholdL1 is the soft threshold applied to gradient sums.
func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

func (g *grower) score(sumGrad, sumHess float64) float64 {
	t := thresholdL1(sumGrad, g.params.Alpha)
	return t * t / (sumHess + g.params.Lambda)
}

func (g *grower) leafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + g.params.Lambda
	if denom == 0 {
		return 0
	}
	return -thresholdL1(sumGrad, g.params.Alpha) / denom * g.params.LearningRate
}

func (g *grower) sums(indices []int) (float64, float64) {
	var sg, sh float64
	for _, i := range indices {
		sg += g.grad[i]
		sh += g.hess[i]
	}
	return sg, sh
}

func (g *grower) features() []int {
	all := make([]int, g.nFeat)
	for i := range all {
		all[i] = i
	}
	k := g.params.MaxFeatures
	if k <= 0 || k >= g.nFeat || g.rng == nil {
		return all
	}
	g.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:k]
}

func (g *grower) grow(indices []int) Tree {
	t := Tree{}
	g.build(&t, indices, 0)
	return t
}

func (g *grower) build(t *Tree, indices []int, depth int) int {
	id := len(t.Nodes)
	sg, sh := g.sums(indices)
	t.Nodes = append(t.Nodes, Node{
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  g.leafValue(sg, sh),
		Count:      len(indices),
	})
	t.MaxDepth = max(t.MaxDepth, depth)

	if g.params.MaxDepth > 0 && depth >= g.params.MaxDepth {
		return id
	}
	if len(indices) < 2*max(g.params.MinSamplesLeaf, 1) {
		return id
	}

	best := splitInfo{Gain: 0}
	found := false
	parent := g.score(sg, sh)
	for _, f := range g.features() {
		if s, ok := g.bestSplit(indices, f, sg, sh, parent); ok && s.Gain > best.Gain {
			best, found = s, true
		}
	}
	if !found {
		return id
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if g.rows[i][best.Feature] <= best.Threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	t.Nodes[id].SplitFeature = best.Feature
	t.Nodes[id].Threshold = best.Threshold
	t.Nodes[id].Gain = best.Gain
	l := g.build(t, left, depth+1)
	r := g.build(t, right, depth+1)
	t.Nodes[id].LeftChild = l
	t.Nodes[id].RightChild = r
	return id
}

// bestSplit scans the sorted values of one feature.
func (g *grower) bestSplit(indices []int, feature int, totalGrad, totalHess, parent float64) (splitInfo, bool) {
	order := append([]int(nil), indices...)
	sort.Slice(order, func(a, b int) bool {
		return g.rows[order[a]][feature] < g.rows[order[b]][feature]
	})

	minLeaf := max(g.params.MinSamplesLeaf, 1)
	best := splitInfo{Feature: feature, Gain: math.Inf(-1)}
	found := false
	var lg, lh float64
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		lg += g.grad[i]
		lh += g.hess[i]
		v, next := g.rows[i][feature], g.rows[order[k+1]][feature]
		if v == next {
			continue
		}
		nl, nr := k+1, len(order)-k-1
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		rh := totalHess - lh
		if lh < g.params.MinChildWeight || rh < g.params.MinChildWeight {
			continue
		}
		gain := 0.5 * (g.score(lg, lh) + g.score(totalGrad-lg, rh) - parent)
		if gain > best.Gain {
			best.Gain = gain
			// the midpoint of adjacent floats can round up to next
			thr := v + (next-v)/2
			if thr == next {
				thr = v
			}
			best.Threshold = thr
			found = true
		}
	}
	return best, found
}

// rowsOf copies X into row slices.
func rowsOf(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, X)
	}
	return rows
}
