package rwlatch

import (
	"sync"
	"testing"
)

func TestTicketLock(t *testing.T) {
	var mu ticketLock
	var wg sync.WaitGroup
	const n, loops = 8, 1000
	var count int
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			for range loops {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if count != n*loops {
		t.Fatalf("count = %d, want %d", count, n*loops)
	}
}
