package util

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestBasicOperations tests push and pop in a single goroutine
func TestBasicOperations(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	if q.Len() != 10 {
		t.Errorf("Expected length 10, got %d", q.Len())
	}

	for i := 0; i < 10; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("Queue closed before item %d", i)
		}
		if v != i {
			t.Errorf("Expected %d, got %d", i, v)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Errorf("Queue should be empty")
	}
}

// TestPopBlocksUntilPush verifies that Pop parks until a producer pushes
func TestPopBlocksUntilPush(t *testing.T) {
	q := NewQueue[string]()
	defer q.Close()

	got := make(chan string, 1)
	go func() {
		v, _ := q.Pop()
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("Pop returned %q before anything was pushed", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("hello")

	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("Expected hello, got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for Pop")
	}
}

// TestConcurrentProducers verifies that no item is lost or duplicated and that
// every producer's items arrive in push order
func TestConcurrentProducers(t *testing.T) {
	q := NewQueue[string]()
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				q.Push(fmt.Sprintf("%d:%d", p, i))
			}
		}(p)
	}

	lastSeen := make(map[int]int)
	for p := 0; p < numProducers; p++ {
		lastSeen[p] = -1
	}

	for n := 0; n < numProducers*itemsPerProducer; n++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("Queue closed after %d items", n)
		}
		var p, i int
		if _, err := fmt.Sscanf(v, "%d:%d", &p, &i); err != nil {
			t.Fatalf("Malformed item %q", v)
		}
		if i != lastSeen[p]+1 {
			t.Fatalf("Producer %d: expected item %d, got %d", p, lastSeen[p]+1, i)
		}
		lastSeen[p] = i
	}

	wg.Wait()
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d items", q.Len())
	}
}

// TestCloseDrains verifies that queued items survive Close and pushes are rejected afterwards
func TestCloseDrains(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Close()

	if q.Push(3) {
		t.Errorf("Push should fail on a closed queue")
	}
	if !q.IsClosed() {
		t.Errorf("Queue should report closed")
	}

	for _, want := range []int{1, 2} {
		v, ok := q.Pop()
		if !ok || v != want {
			t.Fatalf("Expected %d, got %d (ok=%v)", want, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Errorf("Pop should report a drained, closed queue")
	}
}

// TestCloseWakesConsumer verifies that a parked consumer returns on Close
func TestCloseWakesConsumer(t *testing.T) {
	q := NewQueue[int]()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Errorf("Pop should return false after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Consumer was not woken by Close")
	}
}

// TestPushRacingClose verifies that every successful Push is popped, even if Close
// runs while producers are appending
func TestPushRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		q := NewQueue[int]()

		var accepted sync.WaitGroup
		var pushed atomic.Int64
		for p := 0; p < 8; p++ {
			accepted.Add(1)
			go func() {
				defer accepted.Done()
				for i := 0; i < 100; i++ {
					if q.Push(i) {
						pushed.Add(1)
					}
				}
			}()
		}

		popped := make(chan int64, 1)
		go func() {
			var n int64
			for {
				if _, ok := q.Pop(); !ok {
					popped <- n
					return
				}
				n++
			}
		}()

		time.Sleep(time.Duration(round%5) * 100 * time.Microsecond)
		q.Close()
		accepted.Wait()

		select {
		case n := <-popped:
			if n != pushed.Load() {
				t.Fatalf("round %d: %d pushes accepted, %d popped", round, pushed.Load(), n)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: consumer did not finish", round)
		}
	}
}
