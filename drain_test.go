// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrainRunsInEnqueueOrder(t *testing.T) {
	var d Drain
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		d.Enqueue(func() { order = append(order, i) })
	}
	d.Run()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDrainDefersCallbacksEnqueuedDuringRun(t *testing.T) {
	var d Drain
	var ran []string
	d.Enqueue(func() {
		ran = append(ran, "first")
		d.Enqueue(func() { ran = append(ran, "nested") })
	})
	d.Run()
	assert.Equal(t, []string{"first"}, ran)

	d.Run()
	assert.Equal(t, []string{"first", "nested"}, ran)
}

func TestDrainNeverRunsConcurrently(t *testing.T) {
	var d Drain
	var mu sync.Mutex
	running := false
	concurrent := false
	for i := 0; i < 50; i++ {
		d.Enqueue(func() {
			mu.Lock()
			if running {
				concurrent = true
			}
			running = true
			mu.Unlock()

			mu.Lock()
			running = false
			mu.Unlock()
		})
	}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Run()
		}()
	}
	wg.Wait()
	assert.False(t, concurrent)
}
