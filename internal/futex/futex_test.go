package futex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMutexExcludes(t *testing.T) {
	var word uint32
	mu := NewMutex(&word)

	const workers = 8
	const rounds = 2000
	counter := 0

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*rounds, counter)
	assert.Equal(t, uint32(0), word, "mutex word must return to unlocked")
}

func TestMutexTryLock(t *testing.T) {
	var word uint32
	mu := NewMutex(&word)

	require.True(t, mu.TryLock())
	assert.False(t, mu.TryLock())
	mu.Unlock()
	assert.True(t, mu.TryLock())
	mu.Unlock()
}

func TestCondSignalWakesWaiter(t *testing.T) {
	var lockWord, seq uint32
	mu := NewMutex(&lockWord)
	cond := NewCond(&seq, mu)

	ready := false
	done := make(chan struct{})

	go func() {
		defer close(done)
		mu.Lock()
		for !ready {
			cond.Wait()
		}
		mu.Unlock()
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	ready = true
	cond.Signal()
	mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestCondBroadcastWakesAll(t *testing.T) {
	var lockWord, seq uint32
	mu := NewMutex(&lockWord)
	cond := NewCond(&seq, mu)

	const waiters = 4
	open := false

	var wg sync.WaitGroup
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			for !open {
				cond.Wait()
			}
			mu.Unlock()
		}()
	}

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	open = true
	cond.Broadcast()
	mu.Unlock()

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("not all waiters were woken")
	}
}
