package host

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSwitchIsIdempotent(t *testing.T) {
	acc := NewPlatformAccessory("Trash", GenerateUUID("Trash"))
	assert.Nil(t, acc.Switch())

	first := acc.AddSwitch("Trash")
	second := acc.AddSwitch("Other")
	assert.Same(t, first, second)
	assert.Equal(t, "Trash", acc.Switch().Name())
}

func TestSwitchSet(t *testing.T) {
	t.Run("commits after handler acknowledges", func(t *testing.T) {
		sw := NewPlatformAccessory("A", "a").AddSwitch("A")
		var got []bool
		sw.OnSet(func(v bool) error {
			got = append(got, v)
			return nil
		})

		require.NoError(t, sw.Set(true))
		assert.True(t, sw.Value())
		assert.Equal(t, []bool{true}, got)
	})

	t.Run("keeps previous value when handler rejects", func(t *testing.T) {
		sw := NewPlatformAccessory("A", "a").AddSwitch("A")
		sw.OnSet(func(bool) error { return errors.New("nope") })

		err := sw.Set(true)
		assert.EqualError(t, err, "nope")
		assert.False(t, sw.Value())
	})

	t.Run("stores value without handler", func(t *testing.T) {
		sw := NewPlatformAccessory("A", "a").AddSwitch("A")
		assert.False(t, sw.Wired())
		require.NoError(t, sw.Set(true))
		assert.True(t, sw.Value())
	})

	t.Run("does not notify transport", func(t *testing.T) {
		sw := NewPlatformAccessory("A", "a").AddSwitch("A")
		notified := 0
		sw.SetNotifier(func(bool) { notified++ })
		require.NoError(t, sw.Set(true))
		assert.Zero(t, notified)
	})
}

func TestSwitchUpdate(t *testing.T) {
	sw := NewPlatformAccessory("A", "a").AddSwitch("A")
	handlerCalls := 0
	sw.OnSet(func(bool) error {
		handlerCalls++
		return nil
	})
	var notified []bool
	sw.SetNotifier(func(v bool) { notified = append(notified, v) })

	sw.Update(true)
	sw.Update(true)
	sw.Update(false)

	assert.False(t, sw.Value())
	assert.Equal(t, []bool{true, false}, notified)
	assert.Zero(t, handlerCalls)
}

func TestOnSetReplacesHandler(t *testing.T) {
	sw := NewPlatformAccessory("A", "a").AddSwitch("A")
	calls := ""
	sw.OnSet(func(bool) error { calls += "first"; return nil })
	sw.OnSet(func(bool) error { calls += "second"; return nil })

	require.NoError(t, sw.Set(true))
	assert.Equal(t, "second", calls)
	assert.True(t, sw.Wired())
}

func TestSwitchUpdateWith(t *testing.T) {
	t.Run("error leaves value unchanged", func(t *testing.T) {
		sw := NewPlatformAccessory("A", "a").AddSwitch("A")
		notified := 0
		sw.SetNotifier(func(bool) { notified++ })

		err := sw.UpdateWith(func() (bool, error) { return true, errors.New("gone") })
		assert.EqualError(t, err, "gone")
		assert.False(t, sw.Value())
		assert.Zero(t, notified)
	})

	t.Run("notifies on change only", func(t *testing.T) {
		sw := NewPlatformAccessory("A", "a").AddSwitch("A")
		var notified []bool
		sw.SetNotifier(func(v bool) { notified = append(notified, v) })

		require.NoError(t, sw.UpdateWith(func() (bool, error) { return true, nil }))
		require.NoError(t, sw.UpdateWith(func() (bool, error) { return true, nil }))
		assert.True(t, sw.Value())
		assert.Equal(t, []bool{true}, notified)
	})
}

// The switch must end on the value its backing state holds, however user
// writes and plugin updates interleave.
func TestSwitchSetAndUpdateAgree(t *testing.T) {
	sw := NewPlatformAccessory("A", "a").AddSwitch("A")

	var mu sync.Mutex
	backing := false
	sw.OnSet(func(v bool) error {
		mu.Lock()
		defer mu.Unlock()
		backing = v
		return nil
	})
	read := func() (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		return backing, nil
	}
	write := func(v bool) {
		mu.Lock()
		defer mu.Unlock()
		backing = v
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		g := g
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = sw.Set((i+g)%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = sw.UpdateWith(func() (bool, error) {
					write(i%3 == 0)
					return read()
				})
			}
		}()
	}
	wg.Wait()

	want, _ := read()
	assert.Equal(t, want, sw.Value())
}

func TestOnSetWaitsForRunningSet(t *testing.T) {
	sw := NewPlatformAccessory("A", "a").AddSwitch("A")
	entered := make(chan struct{})
	release := make(chan struct{})
	sw.OnSet(func(bool) error {
		close(entered)
		<-release
		return nil
	})

	setDone := make(chan error, 1)
	go func() { setDone <- sw.Set(true) }()
	<-entered

	replaced := make(chan struct{})
	go func() {
		sw.OnSet(nil)
		close(replaced)
	}()

	select {
	case <-replaced:
		t.Fatal("OnSet returned while the previous handler was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-setDone)
	<-replaced
	assert.False(t, sw.Wired())
	assert.True(t, sw.Value())
}
