package biftbuilder

import "container/heap"

// shortestPaths runs Dijkstra from source over g, returning for each
// destination the full set of predecessors on any shortest path (ties
// retained), grounded on bier-config.rs's `dijkstra` + predecessor-map
// usage. predecessors[d] is empty for the source node itself.
func shortestPaths(g *Graph, source int) (predecessors [][]int) {
	n := g.NumNodes()
	const inf = int(^uint(0) >> 1)

	dist := make([]int, n)
	predecessors = make([][]int, n)
	for i := range dist {
		dist[i] = inf
	}
	dist[source] = 0

	pq := &priorityQueue{{node: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if cur.dist > dist[cur.node] {
			continue // stale entry
		}
		for _, e := range g.Adjacency[cur.node] {
			nd := cur.dist + e.metric
			switch {
			case nd < dist[e.to]:
				dist[e.to] = nd
				predecessors[e.to] = []int{cur.node}
				heap.Push(pq, pqItem{node: e.to, dist: nd})
			case nd == dist[e.to]:
				predecessors[e.to] = appendIfAbsent(predecessors[e.to], cur.node)
			}
		}
	}
	return predecessors
}

func appendIfAbsent(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// nextHops computes next_hops(source, destination): the set of immediate
// neighbors of source that lie on some shortest source->destination path,
// by walking predecessors backward from destination. Special case:
// nextHops(source, source) = {source}, matching
// get_all_out_interfaces_to_destination's source==destination branch.
func nextHops(predecessors [][]int, source, destination int) []int {
	if source == destination {
		return []int{source}
	}

	var out []int
	visited := make([]bool, len(predecessors))
	stack := []int{destination}

	for len(stack) > 0 {
		elem := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[elem] {
			continue
		}
		visited[elem] = true
		for _, pred := range predecessors[elem] {
			if pred == source {
				out = appendIfAbsent(out, elem)
				continue
			}
			if visited[pred] {
				continue
			}
			stack = append(stack, pred)
		}
	}
	return out
}

type pqItem struct {
	node int
	dist int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
