package exporter

import "testing"

func TestQueue_PushAndSwap(t *testing.T) {
	q := newQueue[int](10)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}

	items := q.Swap()
	if len(items) != 3 || items[0] != 1 || items[2] != 3 {
		t.Errorf("swapped items = %v, want [1 2 3]", items)
	}
	if q.Len() != 0 {
		t.Errorf("len after swap = %d, want 0", q.Len())
	}
}

func TestQueue_DropOldestWhenFull(t *testing.T) {
	q := newQueue[int](3)
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", q.Dropped())
	}

	items := q.Swap()
	if items[0] != 3 || items[2] != 5 {
		t.Errorf("items = %v, want [3 4 5]", items)
	}
}

func TestQueue_RequeuePreservesOrder(t *testing.T) {
	q := newQueue[int](10)
	batch := q.Swap()
	q.Push(4)
	q.Push(5)

	batch = append(batch, 1, 2, 3)
	q.Requeue(batch)

	items := q.Swap()
	want := []int{1, 2, 3, 4, 5}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
}

func TestQueue_RequeueRespectsBound(t *testing.T) {
	q := newQueue[int](3)
	q.Push(10)

	q.Requeue([]int{1, 2, 3, 4})

	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", q.Dropped())
	}
	// The oldest of the combined sequence [1 2 3 4 10] are dropped.
	items := q.Swap()
	if items[0] != 3 || items[1] != 4 || items[2] != 10 {
		t.Errorf("items = %v, want [3 4 10]", items)
	}
}
