package sampler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ride.report/internal/testutil"
)

func TestWindowsCountAndBounds(t *testing.T) {
	for _, tc := range []struct{ total, size int }{
		{0, 15}, {14, 15}, {15, 15}, {16, 15}, {100, 15}, {301, 15}, {97, 7}, {10, 3},
	} {
		ws := Windows(tc.total, tc.size)
		require.Len(t, ws, tc.total/tc.size, "T=%d W=%d", tc.total, tc.size)
		prev := -1
		for _, w := range ws {
			assert.Greater(t, w.First, prev)
			assert.LessOrEqual(t, w.Last-w.First, tc.size-1)
			assert.Less(t, w.Last, tc.total)
			assert.Greater(t, w.Last, w.First)
			prev = w.First
		}
	}
}

func TestWindowsLayout(t *testing.T) {
	assert.Equal(t, []Window{
		{Index: 0, First: 0, Last: 14},
		{Index: 1, First: 15, Last: 29},
	}, Windows(31, 15))
}

func TestWindowsSizeOneSkipsAll(t *testing.T) {
	assert.Empty(t, Windows(10, 1))
}

func TestWindowsDefaultSize(t *testing.T) {
	assert.Len(t, Windows(45, 0), 3)
	assert.Len(t, Windows(45, -2), 3)
}

func TestSampleYieldsPairs(t *testing.T) {
	v := testutil.NewFakeVideo(45, 8, 8)
	var got []Pair
	st, err := Sample(context.Background(), v, v.FrameCount(), 15, func(p Pair) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Windows: 3, Yielded: 3}, st)
	require.Len(t, got, 3)
	assert.Same(t, v.Frames[15], got[1].FirstFrame)
	assert.Same(t, v.Frames[29], got[1].LastFrame)
}

func TestSampleLastFrameFailureSkipsWindow(t *testing.T) {
	v := testutil.NewFakeVideo(45, 8, 8)
	v.Fail[29] = true

	var firsts []int
	st, err := Sample(context.Background(), v, v.FrameCount(), 15, func(p Pair) error {
		firsts = append(firsts, p.First)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 30}, firsts)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 2, st.Yielded)
}

func TestSampleFirstFrameFailureIsFatal(t *testing.T) {
	v := testutil.NewFakeVideo(45, 8, 8)
	v.Fail[15] = true

	calls := 0
	_, err := Sample(context.Background(), v, v.FrameCount(), 15, func(Pair) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameRead))
	assert.Equal(t, 1, calls)
}

func TestSampleStopsOnVisitError(t *testing.T) {
	v := testutil.NewFakeVideo(45, 8, 8)
	boom := errors.New("boom")
	st, err := Sample(context.Background(), v, v.FrameCount(), 15, func(Pair) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, st.Yielded)
}

func TestSampleHonoursCancellationBetweenWindows(t *testing.T) {
	v := testutil.NewFakeVideo(45, 8, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := Sample(ctx, v, v.FrameCount(), 15, func(Pair) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, st.Yielded)
}
