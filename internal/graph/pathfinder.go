package graph

import (
	"fmt"
	"math"
)

const (
	DefaultReference = Currency("USD")
	DefaultTolerance = 1e-12
)

// Cycle is a closed trading loop in trading order: cycle[i] is exchanged
// into cycle[i+1] and the last element back into the first.
type Cycle []Currency

func (c Cycle) Contains(cur Currency) bool {
	for _, n := range c {
		if n == cur {
			return true
		}
	}
	return false
}

// InconsistentGraphError reports parent pointers or edges that vanished
// between relaxation and extraction.
type InconsistentGraphError struct {
	Node Currency // node without a parent, if any
	Edge *EdgeKey // cycle edge missing from the graph, if any
}

func (e *InconsistentGraphError) Error() string {
	if e.Edge != nil {
		return fmt.Sprintf("graph: inconsistent cycle: edge %s missing", e.Edge)
	}
	return fmt.Sprintf("graph: inconsistent cycle: node %s has no parent", e.Node)
}

// DetectorOptions configures a CycleDetector. Zero values select defaults.
type DetectorOptions struct {
	Reference Currency
	// RelaxationTolerance is the minimum per-edge improvement that counts
	// as a relaxation.
	RelaxationTolerance float64
	// CycleTolerance is how far below zero the summed weights of an
	// extracted cycle must be to be reported.
	CycleTolerance float64
}

// Detection describes the outcome of one pass.
type Detection struct {
	Cycle     Cycle   // nil when no verified cycle exists
	Seed      Currency
	WeightSum float64
	Artifact  bool // a cycle was extracted but failed verification
	Passes    int
}

// CycleDetector finds negative cycles with a Bellman-Ford relaxation. It
// holds configuration only, so one value can serve any number of passes.
type CycleDetector struct {
	opts DetectorOptions
}

func NewCycleDetector(opts DetectorOptions) *CycleDetector {
	if opts.Reference == "" {
		opts.Reference = DefaultReference
	}
	if opts.RelaxationTolerance <= 0 {
		opts.RelaxationTolerance = DefaultTolerance
	}
	if opts.CycleTolerance <= 0 {
		opts.CycleTolerance = DefaultTolerance
	}
	return &CycleDetector{opts: opts}
}

func (d *CycleDetector) Reference() Currency { return d.opts.Reference }

// Detect returns the verified negative cycle of g, rotated so the reference
// currency leads when it is a member, or nil when there is none.
func (d *CycleDetector) Detect(g *RateGraph) (Cycle, error) {
	res, err := d.DetectDetailed(g)
	if err != nil {
		return nil, err
	}
	return res.Cycle, nil
}

func (d *CycleDetector) DetectDetailed(g *RateGraph) (Detection, error) {
	nodes := g.Nodes()
	edges := g.edgeList()

	dist := make(map[Currency]float64, len(nodes))
	parent := make(map[Currency]Currency, len(nodes))
	for _, n := range nodes {
		dist[n] = math.Inf(1)
	}
	if _, ok := dist[d.opts.Reference]; !ok {
		return Detection{}, nil
	}
	dist[d.opts.Reference] = 0

	tol := d.opts.RelaxationTolerance
	var res Detection
	for i := 0; i < len(nodes)-1; i++ {
		res.Passes++
		changed := false
		for _, e := range edges {
			du := dist[e.from]
			if math.IsInf(du, 1) {
				continue
			}
			if du+e.w < dist[e.to]-tol {
				dist[e.to] = du + e.w
				parent[e.to] = e.from
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	found := false
	for _, e := range edges {
		du := dist[e.from]
		if math.IsInf(du, 1) {
			continue
		}
		if dist[e.to] > du+e.w+tol {
			// the violating edge is itself a relaxation; record it so the
			// walk from the seed starts on a real parent chain
			parent[e.to] = e.from
			res.Seed = e.to
			found = true
			break
		}
	}
	if !found {
		return res, nil
	}

	cycle, err := extract(res.Seed, parent)
	if err != nil {
		return res, err
	}
	sum, err := cycleWeight(g, cycle)
	if err != nil {
		return res, err
	}
	res.WeightSum = sum
	if !(sum < -d.opts.CycleTolerance) {
		res.Artifact = true
		return res, nil
	}
	res.Cycle = rotate(cycle, d.opts.Reference)
	return res, nil
}

// extract walks parent pointers from seed until a node repeats. The nodes
// from the first visit of that node up to the repeat form the cycle in
// reverse trading order.
func extract(seed Currency, parent map[Currency]Currency) (Cycle, error) {
	index := make(map[Currency]int)
	var walk []Currency
	cur := seed
	for {
		if i, ok := index[cur]; ok {
			loop := walk[i:]
			out := make(Cycle, len(loop))
			for j, n := range loop {
				out[len(loop)-1-j] = n
			}
			return out, nil
		}
		index[cur] = len(walk)
		walk = append(walk, cur)
		p, ok := parent[cur]
		if !ok {
			return nil, &InconsistentGraphError{Node: cur}
		}
		cur = p
	}
}

func cycleWeight(g *RateGraph, c Cycle) (float64, error) {
	var sum float64
	for i, from := range c {
		to := c[(i+1)%len(c)]
		w, ok := g.Weight(from, to)
		if !ok {
			return 0, &InconsistentGraphError{Edge: &EdgeKey{From: from, To: to}}
		}
		sum += w
	}
	return sum, nil
}

func rotate(c Cycle, first Currency) Cycle {
	for i, n := range c {
		if n == first {
			out := make(Cycle, 0, len(c))
			out = append(out, c[i:]...)
			return append(out, c[:i]...)
		}
	}
	return c
}
