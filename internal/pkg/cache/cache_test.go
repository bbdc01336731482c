package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIterator struct {
	keys []string
	pos  int
	err  error
}

func (f *fakeIterator) Next(ctx context.Context) bool {
	if f.pos >= len(f.keys) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeIterator) Val() string { return f.keys[f.pos-1] }
func (f *fakeIterator) Err() error  { return f.err }

func keysN(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("pricing:1:%d", i)
	}
	return keys
}

func TestDeleteBatchedFlushesFullBatchesAndRemainder(t *testing.T) {
	var calls [][]string
	del := func(keys []string) error {
		copied := append([]string(nil), keys...)
		calls = append(calls, copied)
		return nil
	}

	err := deleteBatched(&fakeIterator{keys: keysN(scanBatchSize*2 + 3)}, del)
	require.NoError(t, err)

	require.Len(t, calls, 3)
	assert.Len(t, calls[0], scanBatchSize)
	assert.Len(t, calls[1], scanBatchSize)
	assert.Len(t, calls[2], 3)
}

func TestDeleteBatchedNoKeysNoCalls(t *testing.T) {
	called := false
	err := deleteBatched(&fakeIterator{}, func([]string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestDeleteBatchedStopsOnDeleteError(t *testing.T) {
	calls := 0
	err := deleteBatched(&fakeIterator{keys: keysN(scanBatchSize * 2)}, func([]string) error {
		calls++
		return errors.New("connection lost")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDeleteBatchedSurfacesScanError(t *testing.T) {
	scanErr := errors.New("scan failed")
	err := deleteBatched(&fakeIterator{keys: keysN(2), err: scanErr}, func([]string) error {
		t.Fatal("no delete should run after a scan error")
		return nil
	})
	assert.ErrorIs(t, err, scanErr)
}
