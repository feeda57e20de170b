// Package cv provides the fold construction, cross-validation and grid
// search used by the training and bias-correction drivers.
package cv

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// Splitter generates train/test folds over nSamples rows. Stratifying
// splitters use labels; the others ignore it.
type Splitter interface {
	Split(nSamples int, labels []int) ([]CVFold, error)
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

func newRand(seed int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func checkSplits(op string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewValueError(op, "cannot have number of splits greater than the number of samples")
	}
	return nil
}

// foldsFromAssignment turns a per-sample fold id into folds with indices in
// ascending order.
func foldsFromAssignment(assign []int, nSplits int) []CVFold {
	folds := make([]CVFold, nSplits)
	for i, f := range assign {
		folds[f].TestIndices = append(folds[f].TestIndices, i)
	}
	for f := range folds {
		folds[f].TrainIndices = make([]int, 0, len(assign)-len(folds[f].TestIndices))
		for i, g := range assign {
			if g != f {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
	}
	return folds
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates contiguous folds; the first n % k folds get one extra row.
func (kf *KFold) Split(nSamples int, _ []int) ([]CVFold, error) {
	if err := checkSplits("KFold.Split", kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	assign := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			assign[idx] = f
		}
		current += size
	}

	folds := make([]CVFold, kf.NSplits)
	current = 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		folds[f].TestIndices = append([]int(nil), indices[current:current+size]...)
		folds[f].TrainIndices = make([]int, 0, nSamples-size)
		for i := 0; i < nSamples; i++ {
			if assign[i] != f {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
		current += size
	}
	return folds, nil
}

// StratifiedKFold implements stratified k-fold cross-validation.
// Per-fold class counts come from dealing the sorted labels round-robin, so
// fold sizes differ by at most one.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold
func (skf *StratifiedKFold) Split(nSamples int, labels []int) ([]CVFold, error) {
	var r *rand.Rand
	if skf.Shuffle {
		r = newRand(skf.RandomSeed)
	}
	return stratifiedSplit(skf.NSplits, nSamples, labels, r)
}

func stratifiedSplit(nSplits, nSamples int, labels []int, r *rand.Rand) ([]CVFold, error) {
	if err := checkSplits("StratifiedKFold.Split", nSplits, nSamples); err != nil {
		return nil, err
	}
	if len(labels) != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, len(labels), 0)
	}

	// classes are numbered in order of first appearance
	classOf := make(map[int]int)
	encoded := make([]int, nSamples)
	for i, l := range labels {
		c, ok := classOf[l]
		if !ok {
			c = len(classOf)
			classOf[l] = c
		}
		encoded[i] = c
	}
	nClasses := len(classOf)

	counts := make([]int, nClasses)
	for _, c := range encoded {
		counts[c]++
	}
	minCount, maxCount := counts[0], counts[0]
	for _, c := range counts {
		minCount = min(minCount, c)
		maxCount = max(maxCount, c)
	}
	if nSplits > maxCount {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			"n_splits cannot be greater than the number of members in each class")
	}
	if nSplits > minCount {
		errors.Warn(errors.NewSplitWarning("StratifiedKFold", nSplits, minCount))
	}

	sorted := append([]int(nil), encoded...)
	sort.Ints(sorted)
	// allocation[f][c]: members of class c in test fold f
	allocation := make([][]int, nSplits)
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
		for i := f; i < nSamples; i += nSplits {
			allocation[f][sorted[i]]++
		}
	}

	assign := make([]int, nSamples)
	for c := 0; c < nClasses; c++ {
		foldsForClass := make([]int, 0, counts[c])
		for f := 0; f < nSplits; f++ {
			for k := 0; k < allocation[f][c]; k++ {
				foldsForClass = append(foldsForClass, f)
			}
		}
		if r != nil {
			r.Shuffle(len(foldsForClass), func(i, j int) {
				foldsForClass[i], foldsForClass[j] = foldsForClass[j], foldsForClass[i]
			})
		}
		k := 0
		for i, e := range encoded {
			if e == c {
				assign[i] = foldsForClass[k]
				k++
			}
		}
	}
	return foldsFromAssignment(assign, nSplits), nil
}

// RepeatedStratifiedKFold runs NRepeats shuffled stratified k-fold passes.
// All passes draw from one generator seeded with RandomSeed.
type RepeatedStratifiedKFold struct {
	NSplits    int
	NRepeats   int
	RandomSeed int
}

// NewRepeatedStratifiedKFold creates a repeated stratified splitter
func NewRepeatedStratifiedKFold(nSplits, nRepeats, randomSeed int) *RepeatedStratifiedKFold {
	return &RepeatedStratifiedKFold{NSplits: nSplits, NRepeats: nRepeats, RandomSeed: randomSeed}
}

// GetNSplits returns NSplits * NRepeats
func (rs *RepeatedStratifiedKFold) GetNSplits() int {
	return rs.NSplits * rs.NRepeats
}

// Split returns the folds of every repeat, repeat by repeat.
func (rs *RepeatedStratifiedKFold) Split(nSamples int, labels []int) ([]CVFold, error) {
	if rs.NRepeats < 1 {
		return nil, errors.NewValidationError("n_repeats", "must be at least 1", rs.NRepeats)
	}
	r := newRand(rs.RandomSeed)
	folds := make([]CVFold, 0, rs.GetNSplits())
	for i := 0; i < rs.NRepeats; i++ {
		f, err := stratifiedSplit(rs.NSplits, nSamples, labels, r)
		if err != nil {
			return nil, err
		}
		folds = append(folds, f...)
	}
	return folds, nil
}
