package interp

// weights returns the Order+1 Lagrange barycentric weights for
// continuous position pos, along with the first node index they apply
// to (the other Order nodes being firstNode+1 .. firstNode+Order), and
// false if pos falls outside the axis by more than Order/2 nodes.
func (ip *Interp) weights(pos float64) (w []float64, firstNode int, ok bool) {
	k := ip.Order
	half := float64(k) / 2.0
	if pos < -half || pos > float64(ip.Nodes-1)+half {
		return nil, 0, false
	}

	first := int(pos) - k/2
	if first < 0 {
		first = 0
	}
	if first > ip.Nodes-1-k {
		first = ip.Nodes - 1 - k
	}

	nodes := make([]float64, k+1)
	for i := range nodes {
		nodes[i] = float64(first + i)
	}

	w = make([]float64, k+1)
	for j := 0; j <= k; j++ {
		num, den := 1.0, 1.0
		for m := 0; m <= k; m++ {
			if m == j {
				continue
			}
			num *= pos - nodes[m]
			den *= nodes[j] - nodes[m]
		}
		w[j] = num / den
	}
	return w, first, true
}

// Insert distributes weight*ntuple's contribution across the tensor
// product of Lagrange nodes nearest to ntuple, calling add once per
// non-dropped combination with the destination multi-index and the
// contribution to accumulate there. It returns false (and calls add zero
// times) if any axis coordinate falls outside its interpolation region by
// more than Order/2 nodes.
//
// add is expected to accumulate (not overwrite) its argument, mirroring
// PackedArray's "+=" insertion semantics.
func Insert(interps []Interp, ntuple []float64, weight float64, add func(index []int, contribution float64)) bool {
	n := len(interps)
	axisWeights := make([][]float64, n)
	firstNodes := make([]int, n)
	axisReweights := make([][]float64, n)

	for i, ip := range interps {
		pos := ip.continuousIndex(ntuple[i])
		w, first, ok := ip.weights(pos)
		if !ok {
			return false
		}
		axisWeights[i] = w
		firstNodes[i] = first

		values := ip.NodeValues()
		rw := make([]float64, len(w))
		for j := range w {
			rw[j] = ip.Reweight(values[first+j])
		}
		axisReweights[i] = rw
	}

	// Tensor product over all axes' (Order_i + 1) nodes.
	combo := make([]int, n)   // per-axis offset into the (k+1) window
	index := make([]int, n)   // destination multi-index, reused per call
	var recurse func(axis int, w float64)
	recurse = func(axis int, w float64) {
		if axis == n {
			idx := make([]int, n)
			copy(idx, index)
			add(idx, weight*w)
			return
		}
		for j, aw := range axisWeights[axis] {
			combo[axis] = j
			index[axis] = firstNodes[axis] + j
			rw := axisReweights[axis][j]
			factor := aw
			if rw != 0 {
				factor /= rw
			}
			recurse(axis+1, w*factor)
		}
	}
	recurse(0, 1.0)
	return true
}
