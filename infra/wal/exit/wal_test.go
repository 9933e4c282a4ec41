package exit

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *ExitWAL {
	t.Helper()
	w, err := OpenWithOptions("outbox", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestLifecycle(t *testing.T) {
	w := openMem(t)
	require.NoError(t, w.PutNew(7, []byte(`{"type":"label_set"}`)))

	rec, err := w.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	assert.Equal(t, `{"type":"label_set"}`, string(rec.Payload))

	require.NoError(t, w.MarkSent(7))
	require.NoError(t, w.MarkFailed(7))
	require.NoError(t, w.MarkFailed(7))
	rec, err = w.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, uint32(2), rec.Retries)
	assert.NotZero(t, rec.LastAttempt)
	assert.Equal(t, `{"type":"label_set"}`, string(rec.Payload))

	require.NoError(t, w.MarkAcked(7))
	rec, _ = w.Get(7)
	assert.Equal(t, StateAcked, rec.State)
}

func TestMissingRecord(t *testing.T) {
	w := openMem(t)

	_, err := w.Get(1)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, w.MarkAcked(1), ErrNotFound)
}

func TestPutIfAbsent(t *testing.T) {
	w := openMem(t)
	require.NoError(t, w.PutNew(3, []byte("a")))
	require.NoError(t, w.MarkAcked(3))

	added, err := w.PutIfAbsent(3, []byte("b"))
	require.NoError(t, err)
	assert.False(t, added)
	rec, _ := w.Get(3)
	assert.Equal(t, StateAcked, rec.State)

	added, err = w.PutIfAbsent(4, []byte("c"))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestScanPendingInSeqOrder(t *testing.T) {
	w := openMem(t)
	for _, seq := range []uint64{12, 3, 100, 9} {
		require.NoError(t, w.PutNew(seq, nil))
	}
	require.NoError(t, w.MarkAcked(9))

	var seen []uint64
	require.NoError(t, w.ScanPending(func(rec ExitRecord) error {
		seen = append(seen, rec.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{3, 12, 100}, seen)
}

func TestTruncateAckedUpTo(t *testing.T) {
	w := openMem(t)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, w.PutNew(seq, nil))
	}
	require.NoError(t, w.MarkAcked(1))
	require.NoError(t, w.MarkAcked(2))
	require.NoError(t, w.MarkAcked(5))

	require.NoError(t, w.TruncateAckedUpTo(4))

	_, err := w.Get(1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = w.Get(2)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = w.Get(3)
	require.NoError(t, err)
	_, err = w.Get(5)
	require.NoError(t, err)
}
