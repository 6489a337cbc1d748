package tasks

// maxTraversal bounds every walk over the task graph. Parent links are
// not guaranteed acyclic, so walks also carry a seen-set.
const maxTraversal = 10000

// forest is an in-memory view of one project's tasks keyed by task_id.
type forest struct {
	byID     map[string]*Task
	ordered  []*Task
	children map[string][]string
}

func newForest(list []*Task) *forest {
	f := &forest{
		byID:     make(map[string]*Task, len(list)),
		ordered:  list,
		children: make(map[string][]string),
	}
	for _, t := range list {
		f.byID[t.TaskID] = t
	}
	f.reindex()
	return f
}

// reindex rebuilds the child adjacency after a parent change.
func (f *forest) reindex() {
	f.children = make(map[string][]string, len(f.ordered))
	for _, t := range f.ordered {
		if t.ParentID != nil && *t.ParentID != "" {
			f.children[*t.ParentID] = append(f.children[*t.ParentID], t.TaskID)
		}
	}
}

// ancestorLocked walks the parent chain of id and reports whether any
// ancestor is locked. Missing parents end the walk.
func (f *forest) ancestorLocked(id string) bool {
	seen := map[string]bool{id: true}
	t, ok := f.byID[id]
	if !ok {
		return false
	}
	for steps := 0; steps < maxTraversal; steps++ {
		if t.ParentID == nil || *t.ParentID == "" {
			return false
		}
		pid := *t.ParentID
		if seen[pid] {
			return false
		}
		seen[pid] = true
		parent, ok := f.byID[pid]
		if !ok {
			return false
		}
		if parent.Status.Locked() {
			return true
		}
		t = parent
	}
	return false
}

// descendants returns every transitive child of id in BFS order, excluding
// id itself.
func (f *forest) descendants(id string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 && len(out) < maxTraversal {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range f.children[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
