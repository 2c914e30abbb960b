package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	l := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Lock(7)
			defer l.Unlock(7)
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyLockReleasesEntries(t *testing.T) {
	l := New()
	l.Lock(1)
	l.Lock(2)
	l.Unlock(2)
	l.Unlock(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}

func TestKeyLockIndependentKeys(t *testing.T) {
	l := New()
	l.Lock(1)

	done := make(chan struct{})
	go func() {
		l.Lock(2)
		l.Unlock(2)
		close(done)
	}()

	<-done // must not block on key 1 being held
	l.Unlock(1)
}
