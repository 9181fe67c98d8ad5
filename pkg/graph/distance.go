package graph

type distanceQueueNode struct {
	name     string
	distance int
}

// Distances returns the hop count from name to every node reachable from it,
// excluding name itself. Traversal is breadth-first in insertion order.
func (ag *AttackGraph) Distances(name string) map[string]int {
	distances := make(map[string]int)
	if _, ok := ag.ids[name]; !ok {
		return distances
	}

	visited := map[string]bool{name: true}
	queue := []distanceQueueNode{{name: name, distance: 0}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range ag.Successors(current.name) {
			if visited[next] {
				continue
			}
			visited[next] = true
			distances[next] = current.distance + 1
			queue = append(queue, distanceQueueNode{name: next, distance: current.distance + 1})
		}
	}
	return distances
}

// Reachable returns the nodes reachable from name, ordered by hop count and
// then by insertion order.
func (ag *AttackGraph) Reachable(name string) []string {
	d := ag.Distances(name)
	out := make([]string, 0, len(d))
	maxHop := 0
	for _, hop := range d {
		if hop > maxHop {
			maxHop = hop
		}
	}
	for hop := 1; hop <= maxHop; hop++ {
		for _, n := range ag.names {
			if h, ok := d[n]; ok && h == hop {
				out = append(out, n)
			}
		}
	}
	return out
}
