package writer

import (
	"sync"
	"testing"
)

func TestLockTable_ReleasesEntries(t *testing.T) {
	table := newLockTable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "a"
			if i%2 == 0 {
				path = "b"
			}
			unlock := table.lock(path)
			unlock()
		}(i)
	}
	wg.Wait()

	if n := table.size(); n != 0 {
		t.Errorf("expected lock table to be empty, got %d entries", n)
	}
}
