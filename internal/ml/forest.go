package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ForestConfig holds the random-forest hyperparameters. The defaults
// are part of the training contract and are not exposed in the service
// configuration: changing them silently changes model semantics.
type ForestConfig struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	Seed            int64 `json:"seed"`
}

// DefaultForestConfig returns the fixed training hyperparameters:
// 100 trees, depth 10, minimum 5 samples to split, seed 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100, MaxDepth: 10, MinSamplesSplit: 5, Seed: 42}
}

// Node is one node of a flattened decision tree. Leaves have
// Feature == -1 and carry the class distribution of their training
// samples; internal nodes route on x[Feature] <= Threshold.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Proba     []float64 `json:"p,omitempty"`
}

// Tree is a single CART classification tree stored as a node array,
// with index 0 as the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// RandomForest is a binary classifier: an ensemble of bootstrap-trained
// Gini CART trees. Class 1 is "collapse". The whole structure is plain
// data so an artifact round-trips through JSON without loss.
type RandomForest struct {
	Config     ForestConfig `json:"config"`
	Trees      []Tree       `json:"trees"`
	Importance []float64    `json:"importance"`
}

// TrainForest fits a forest on standardized feature vectors X with
// binary labels y. Training is deterministic for a given config seed
// and input order.
func TrainForest(cfg ForestConfig, X [][]float64, y []int) (*RandomForest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("feature/label length mismatch: %d vs %d", len(X), len(y))
	}

	n := len(X)
	nf := len(X[0])
	mtry := int(math.Sqrt(float64(nf)))
	if mtry < 1 {
		mtry = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	forest := &RandomForest{
		Config:     cfg,
		Trees:      make([]Tree, 0, cfg.Trees),
		Importance: make([]float64, nf),
	}

	for t := 0; t < cfg.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}

		b := &treeBuilder{
			X:          X,
			y:          y,
			cfg:        cfg,
			rng:        rng,
			mtry:       mtry,
			total:      float64(len(sample)),
			importance: forest.Importance,
		}
		b.grow(sample, 0)
		forest.Trees = append(forest.Trees, Tree{Nodes: b.nodes})
	}

	// Normalize accumulated impurity decreases into a global ranking.
	var sum float64
	for _, v := range forest.Importance {
		sum += v
	}
	if sum > 0 {
		for i := range forest.Importance {
			forest.Importance[i] /= sum
		}
	}

	return forest, nil
}

// PredictProba returns the averaged per-class probabilities of x across
// all trees: [P(no collapse), P(collapse)].
func (rf *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	proba := []float64{0, 0}
	for ti := range rf.Trees {
		nodes := rf.Trees[ti].Nodes
		i := 0
		for nodes[i].Feature >= 0 {
			f := nodes[i].Feature
			if f >= len(x) {
				return nil, fmt.Errorf("tree expects feature %d, input has %d", f, len(x))
			}
			if x[f] <= nodes[i].Threshold {
				i = nodes[i].Left
			} else {
				i = nodes[i].Right
			}
		}
		leaf := nodes[i].Proba
		proba[0] += leaf[0]
		proba[1] += leaf[1]
	}
	nt := float64(len(rf.Trees))
	proba[0] /= nt
	proba[1] /= nt
	return proba, nil
}

// Predict returns the majority class for x.
func (rf *RandomForest) Predict(x []float64) (int, error) {
	p, err := rf.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p[1] > p[0] {
		return 1, nil
	}
	return 0, nil
}

// Accuracy scores the forest on a labeled set.
func (rf *RandomForest) Accuracy(X [][]float64, y []int) (float64, error) {
	if len(X) == 0 {
		return 0, nil
	}
	correct := 0
	for i, x := range X {
		pred, err := rf.Predict(x)
		if err != nil {
			return 0, err
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X)), nil
}

type treeBuilder struct {
	X          [][]float64
	y          []int
	cfg        ForestConfig
	rng        *rand.Rand
	mtry       int
	total      float64
	importance []float64
	nodes      []Node
}

// grow builds the subtree for the given bootstrap sample indices and
// returns its node index.
func (b *treeBuilder) grow(indices []int, depth int) int {
	counts := b.classCounts(indices)
	n := float64(len(indices))

	if depth >= b.cfg.MaxDepth || len(indices) < b.cfg.MinSamplesSplit || counts[0] == 0 || counts[1] == 0 {
		return b.leaf(counts, n)
	}

	feature, threshold, gain := b.bestSplit(indices, counts)
	if gain <= 0 {
		return b.leaf(counts, n)
	}

	var left, right []int
	for _, i := range indices {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return b.leaf(counts, n)
	}

	b.importance[feature] += (n / b.total) * gain

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: feature, Threshold: threshold})
	b.nodes[idx].Left = b.grow(left, depth+1)
	b.nodes[idx].Right = b.grow(right, depth+1)
	return idx
}

func (b *treeBuilder) leaf(counts [2]int, n float64) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature: -1,
		Proba:   []float64{float64(counts[0]) / n, float64(counts[1]) / n},
	})
	return idx
}

func (b *treeBuilder) classCounts(indices []int) [2]int {
	var counts [2]int
	for _, i := range indices {
		counts[b.y[i]]++
	}
	return counts
}

// bestSplit scans a random subset of mtry features for the threshold
// with the largest Gini impurity decrease.
func (b *treeBuilder) bestSplit(indices []int, counts [2]int) (feature int, threshold, gain float64) {
	n := float64(len(indices))
	parent := gini(counts, n)
	feature = -1

	perm := b.rng.Perm(len(b.X[0]))
	for _, f := range perm[:b.mtry] {
		sorted := make([]int, len(indices))
		copy(sorted, indices)
		sort.Slice(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })

		var leftCounts [2]int
		for k := 0; k < len(sorted)-1; k++ {
			leftCounts[b.y[sorted[k]]]++

			cur, next := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if cur == next {
				continue
			}

			nl := float64(k + 1)
			nr := n - nl
			rightCounts := [2]int{counts[0] - leftCounts[0], counts[1] - leftCounts[1]}
			g := parent - (nl/n)*gini(leftCounts, nl) - (nr/n)*gini(rightCounts, nr)
			if g > gain {
				gain = g
				feature = f
				threshold = (cur + next) / 2
			}
		}
	}
	return feature, threshold, gain
}

func gini(counts [2]int, n float64) float64 {
	if n == 0 {
		return 0
	}
	p0 := float64(counts[0]) / n
	p1 := float64(counts[1]) / n
	return 1 - p0*p0 - p1*p1
}
