package graph

import (
	"sort"
	"time"
)

// Currency is a three letter ASCII code such as "USD". Comparison is case sensitive.
type Currency string

// Edge is one directed exchange quote. Weight is -ln(Rate).
type Edge struct {
	Weight      float64
	Rate        float64
	LastUpdated uint64 // microseconds since the Unix epoch
}

// EdgeKey identifies a directed edge.
type EdgeKey struct{ From, To Currency }

func (k EdgeKey) String() string { return string(k.From) + "->" + string(k.To) }

// RateGraph is a directed adjacency map of currencies. It is not safe for
// concurrent use; the owning engine serialises every access.
type RateGraph struct {
	adj map[Currency]map[Currency]Edge
}

func New() *RateGraph {
	return &RateGraph{adj: make(map[Currency]map[Currency]Edge)}
}

// Upsert sets edge(from,to), replacing any previous quote. Both endpoints
// become nodes even if "to" has no outgoing edges yet.
func (g *RateGraph) Upsert(from, to Currency, weight, rate float64, ts uint64) {
	out, ok := g.adj[from]
	if !ok {
		out = make(map[Currency]Edge)
		g.adj[from] = out
	}
	out[to] = Edge{Weight: weight, Rate: rate, LastUpdated: ts}
	if _, ok := g.adj[to]; !ok {
		g.adj[to] = make(map[Currency]Edge)
	}
}

// Remove deletes edge(from,to). Missing edges are ignored; the nodes stay.
func (g *RateGraph) Remove(from, to Currency) {
	if out, ok := g.adj[from]; ok {
		delete(out, to)
	}
}

// EvictExpired removes every edge whose age at now is at least ttl and
// returns the removed keys in sorted order. An edge stamped after now has
// age zero.
func (g *RateGraph) EvictExpired(now uint64, ttl time.Duration) []EdgeKey {
	limit := uint64(ttl.Microseconds())
	var doomed []EdgeKey
	for from, out := range g.adj {
		for to, e := range out {
			if now >= e.LastUpdated && now-e.LastUpdated >= limit {
				doomed = append(doomed, EdgeKey{From: from, To: to})
			}
		}
	}
	for _, k := range doomed {
		g.Remove(k.From, k.To)
	}
	sortKeys(doomed)
	return doomed
}

// Nodes returns every currency ever seen as an endpoint, sorted.
func (g *RateGraph) Nodes() []Currency {
	nodes := make([]Currency, 0, len(g.adj))
	for n := range g.adj {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Edges returns a copy of the outgoing edges of node.
func (g *RateGraph) Edges(node Currency) map[Currency]Edge {
	out := g.adj[node]
	cp := make(map[Currency]Edge, len(out))
	for to, e := range out {
		cp[to] = e
	}
	return cp
}

func (g *RateGraph) Edge(from, to Currency) (Edge, bool) {
	e, ok := g.adj[from][to]
	return e, ok
}

func (g *RateGraph) Weight(from, to Currency) (float64, bool) {
	e, ok := g.adj[from][to]
	if !ok {
		return 0, false
	}
	return e.Weight, true
}

func (g *RateGraph) NodeCount() int { return len(g.adj) }

func (g *RateGraph) EdgeCount() int {
	n := 0
	for _, out := range g.adj {
		n += len(out)
	}
	return n
}

// edgeList flattens the graph into a deterministic (from, to) ordered slice.
func (g *RateGraph) edgeList() []weighted {
	var list []weighted
	for _, from := range g.Nodes() {
		out := g.adj[from]
		tos := make([]Currency, 0, len(out))
		for to := range out {
			tos = append(tos, to)
		}
		sort.Slice(tos, func(i, j int) bool { return tos[i] < tos[j] })
		for _, to := range tos {
			list = append(list, weighted{from: from, to: to, w: out[to].Weight})
		}
	}
	return list
}

type weighted struct {
	from, to Currency
	w        float64
}

func sortKeys(keys []EdgeKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})
}
