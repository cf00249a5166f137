package crawler

import "github.com/ramkansal/fightgraph/pkg/plugin"

// frontier is the FIFO of targets still to crawl plus the set already
// processed. A target is queued at most once and never after it has been
// visited.
type frontier struct {
	queue   []string
	queued  map[string]bool
	visited map[string]bool
}

func newFrontier() *frontier {
	return &frontier{
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
}

// push appends target unless it is already queued or visited.
func (f *frontier) push(target string) bool {
	if target == "" || f.queued[target] || f.visited[target] {
		return false
	}
	f.queued[target] = true
	f.queue = append(f.queue, target)
	return true
}

func (f *frontier) pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	target := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.queued, target)
	return target, true
}

// requeue puts a visited target back at the head of the queue.
func (f *frontier) requeue(target string) {
	delete(f.visited, target)
	if f.queued[target] {
		return
	}
	f.queued[target] = true
	f.queue = append([]string{target}, f.queue...)
}

func (f *frontier) visit(target string) {
	f.visited[target] = true
}

func (f *frontier) isVisited(target string) bool {
	return f.visited[target]
}

func (f *frontier) len() int {
	return len(f.queue)
}

func (f *frontier) snapshot() plugin.FrontierSnapshot {
	s := plugin.FrontierSnapshot{
		Queue:   append([]string(nil), f.queue...),
		Visited: make([]string, 0, len(f.visited)),
	}
	for target := range f.visited {
		s.Visited = append(s.Visited, target)
	}
	return s
}

// restore loads a snapshot, keeping the invariants for malformed ones.
func (f *frontier) restore(s plugin.FrontierSnapshot) {
	for _, target := range s.Visited {
		f.visit(target)
	}
	for _, target := range s.Queue {
		f.push(target)
	}
}
