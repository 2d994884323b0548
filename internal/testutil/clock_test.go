package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StepsOnNow(t *testing.T) {
	c := NewFakeClock()

	assert.Equal(t, Epoch, c.Current())
	assert.Equal(t, Epoch.Add(time.Second), c.Now())
	assert.Equal(t, Epoch.Add(2*time.Second), c.Now())
}

func TestFakeClock_AdvanceAndReset(t *testing.T) {
	c := NewFakeClock()

	c.Advance(time.Hour)
	assert.Equal(t, Epoch.Add(time.Hour), c.Current())

	c.Reset()
	assert.Equal(t, Epoch, c.Current())
}

func TestFakeClock_Concurrent(t *testing.T) {
	c := NewFakeClock()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(goroutines*time.Second), c.Current())
}
