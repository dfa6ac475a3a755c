package spline

// Batch is a structure-of-arrays evaluation request: X[i] is evaluated against
// Tables[Index[i]], the results land in F[i] and FP[i]. The slices are reused
// across calls; Reset keeps their capacity.
type Batch struct {
	Tables []*Table

	X     []float64
	Index []int
	F     []float64
	FP    []float64
}

// Reset empties the request but keeps the allocated storage.
func (b *Batch) Reset() {
	b.X = b.X[:0]
	b.Index = b.Index[:0]
	b.F = b.F[:0]
	b.FP = b.FP[:0]
}

// Add queues x for evaluation against table idx and returns its slot.
func (b *Batch) Add(x float64, idx int) int {
	b.X = append(b.X, x)
	b.Index = append(b.Index, idx)
	return len(b.X) - 1
}

// Len returns the number of queued evaluations.
func (b *Batch) Len() int { return len(b.X) }

// Eval evaluates every queued request.
func (b *Batch) Eval() {
	n := len(b.X)
	if cap(b.F) < n {
		b.F = make([]float64, n)
		b.FP = make([]float64, n)
	}
	b.F = b.F[:n]
	b.FP = b.FP[:n]

	for i, x := range b.X {
		b.F[i], b.FP[i] = b.Tables[b.Index[i]].Eval(x)
	}
}
