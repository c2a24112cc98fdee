package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	id     int64
	closed atomic.Bool
}

func (m *fakeModel) Close() error {
	m.closed.Store(true)
	return nil
}

type countingLoader struct {
	calls atomic.Int64
	delay time.Duration
}

func (l *countingLoader) load() (*fakeModel, error) {
	n := l.calls.Add(1)
	time.Sleep(l.delay)
	return &fakeModel{id: n}, nil
}

func TestConcurrentAcquireLoadsOnce(t *testing.T) {
	reg := New[*fakeModel]()
	loader := &countingLoader{delay: 20 * time.Millisecond}

	const callers = 32
	handles := make([]*fakeModel, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := reg.Acquire("w2v", loader.load)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), loader.calls.Load())
	assert.Equal(t, callers, reg.RefCount("w2v"))
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestReleaseToZeroFreesAndReacquireReloads(t *testing.T) {
	reg := New[*fakeModel]()
	loader := &countingLoader{}

	first, err := reg.Acquire("ft", loader.load)
	require.NoError(t, err)
	_, err = reg.Acquire("ft", loader.load)
	require.NoError(t, err)

	require.NoError(t, reg.Release("ft"))
	assert.False(t, first.closed.Load())
	assert.Equal(t, 1, reg.RefCount("ft"))

	require.NoError(t, reg.Release("ft"))
	assert.True(t, first.closed.Load())
	assert.Equal(t, 0, reg.RefCount("ft"))
	assert.Empty(t, reg.Loaded())

	second, err := reg.Acquire("ft", loader.load)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loader.calls.Load())
	assert.NotSame(t, first, second)
}

func TestReleaseUnknownName(t *testing.T) {
	reg := New[*fakeModel]()
	assert.Error(t, reg.Release("bert"))
	assert.Equal(t, 0, reg.RefCount("bert"))
}

func TestFailedLoadIsNotCached(t *testing.T) {
	reg := New[*fakeModel]()
	boom := errors.New("no such file")

	_, err := reg.Acquire("w2v", func() (*fakeModel, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, reg.RefCount("w2v"))

	loader := &countingLoader{}
	_, err = reg.Acquire("w2v", loader.load)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loader.calls.Load())
}

func TestHooksFire(t *testing.T) {
	var loaded, freed []string
	reg := New[*fakeModel](WithHooks(
		func(name string) { loaded = append(loaded, name) },
		func(name string) { freed = append(freed, name) },
	))
	loader := &countingLoader{}

	_, err := reg.Acquire("bert", loader.load)
	require.NoError(t, err)
	require.NoError(t, reg.Release("bert"))

	assert.Equal(t, []string{"bert"}, loaded)
	assert.Equal(t, []string{"bert"}, freed)
}

func TestPanickingLoaderDoesNotWedgeName(t *testing.T) {
	reg := New[*fakeModel]()

	_, err := reg.Acquire("ft", func() (*fakeModel, error) { panic("corrupt header") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt header")
	assert.Equal(t, 0, reg.RefCount("ft"))

	done := make(chan error, 1)
	go func() {
		_, err := reg.Acquire("ft", (&countingLoader{}).load)
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acquire blocked after a panicking load")
	}
}

func TestWaitersSeeLoaderError(t *testing.T) {
	reg := New[*fakeModel]()
	boom := errors.New("no such file")
	release := make(chan struct{})
	loading := make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := reg.Acquire("w2v", func() (*fakeModel, error) {
			close(loading)
			<-release
			return nil, boom
		})
		first <- err
	}()
	<-loading

	second := make(chan error, 1)
	go func() {
		_, err := reg.Acquire("w2v", (&countingLoader{}).load)
		second <- err
	}()
	require.Eventually(t, func() bool { return reg.RefCount("w2v") == 2 }, time.Second, time.Millisecond)
	close(release)

	errFirst, errSecond := <-first, <-second
	require.ErrorIs(t, errFirst, boom)
	require.ErrorIs(t, errSecond, boom)
	assert.Equal(t, errFirst.Error(), errSecond.Error())
	assert.Contains(t, errSecond.Error(), "loading model w2v")
	assert.Equal(t, 0, reg.RefCount("w2v"))
}
