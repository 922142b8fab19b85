package volumes

import "sync"

// mountRefs tracks which callers hold each mounted volume.
type mountRefs struct {
	mu   sync.Mutex
	refs map[string]map[string]struct{}
}

func newMountRefs() *mountRefs {
	return &mountRefs{refs: make(map[string]map[string]struct{})}
}

// add records callerID as a user of name and returns the new count.
func (r *mountRefs) add(name, callerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	callers, ok := r.refs[name]
	if !ok {
		callers = make(map[string]struct{})
		r.refs[name] = callers
	}
	callers[callerID] = struct{}{}
	return len(callers)
}

// remove drops callerID and returns how many callers remain.
func (r *mountRefs) remove(name, callerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	callers, ok := r.refs[name]
	if !ok {
		return 0
	}
	delete(callers, callerID)
	if len(callers) == 0 {
		delete(r.refs, name)
		return 0
	}
	return len(callers)
}

func (r *mountRefs) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs[name])
}

// mounted returns the number of volumes with at least one caller.
func (r *mountRefs) mounted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}
