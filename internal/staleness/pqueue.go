// Package staleness decides which hierarchical summaries are stale enough to
// regenerate. A max-heap keyed by staleness score drives batched refreshes;
// event notifications propagate up the summary tree so activity at a leaf
// also dirties its ancestors.
package staleness

// pqueue is an array-backed binary max-heap with an id→slot index map, giving
// O(log n) point updates without a linear scan for the node.
type pqueue[T any] struct {
	items []pqItem[T]
	index map[string]int
}

type pqItem[T any] struct {
	id    string
	score float64
	value T
}

func newPQueue[T any]() *pqueue[T] {
	return &pqueue[T]{index: make(map[string]int)}
}

func (q *pqueue[T]) len() int { return len(q.items) }

// push inserts a new item or updates score and value if the id is present
func (q *pqueue[T]) push(id string, score float64, value T) {
	if i, ok := q.index[id]; ok {
		q.items[i].score = score
		q.items[i].value = value
		q.fix(i)
		return
	}
	q.items = append(q.items, pqItem[T]{id: id, score: score, value: value})
	i := len(q.items) - 1
	q.index[id] = i
	q.siftUp(i)
}

// get returns the value stored under id
func (q *pqueue[T]) get(id string) (T, bool) {
	if i, ok := q.index[id]; ok {
		return q.items[i].value, true
	}
	var zero T
	return zero, false
}

// update re-scores an existing item and re-heapifies locally
func (q *pqueue[T]) update(id string, score float64) bool {
	i, ok := q.index[id]
	if !ok {
		return false
	}
	q.items[i].score = score
	q.fix(i)
	return true
}

// peek returns the max-score item without removing it
func (q *pqueue[T]) peek() (T, float64, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, 0, false
	}
	return q.items[0].value, q.items[0].score, true
}

// pop removes and returns the max-score item
func (q *pqueue[T]) pop() (T, float64, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, 0, false
	}
	top := q.items[0]
	last := len(q.items) - 1
	q.swap(0, last)
	q.items = q.items[:last]
	delete(q.index, top.id)
	if last > 0 {
		q.siftDown(0)
	}
	return top.value, top.score, true
}

// all returns every stored value in heap (not sorted) order
func (q *pqueue[T]) all() []T {
	out := make([]T, len(q.items))
	for i, it := range q.items {
		out[i] = it.value
	}
	return out
}

// rebuild re-heapifies the whole array bottom-up (Floyd)
func (q *pqueue[T]) rebuild(rescore func(T) float64) {
	for i := range q.items {
		q.items[i].score = rescore(q.items[i].value)
	}
	for i := len(q.items)/2 - 1; i >= 0; i-- {
		q.siftDown(i)
	}
}

func (q *pqueue[T]) fix(i int) {
	q.siftUp(i)
	q.siftDown(i)
}

func (q *pqueue[T]) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.index[q.items[i].id] = i
	q.index[q.items[j].id] = j
}

func (q *pqueue[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if q.items[i].score <= q.items[parent].score {
			return
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *pqueue[T]) siftDown(i int) {
	n := len(q.items)
	for {
		left, right := 2*i+1, 2*i+2
		largest := i
		if left < n && q.items[left].score > q.items[largest].score {
			largest = left
		}
		if right < n && q.items[right].score > q.items[largest].score {
			largest = right
		}
		if largest == i {
			return
		}
		q.swap(i, largest)
		i = largest
	}
}
