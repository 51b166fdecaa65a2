package candle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
)

var epoch = time.Unix(1_700_000_000, 0).UTC().Truncate(time.Minute)

func TestRecordBuildsOHLC(t *testing.T) {
	a := NewAggregator(time.Second, 0)

	a.Record(100, epoch)
	a.Record(105, epoch.Add(400*time.Millisecond))
	a.Record(98, epoch.Add(900*time.Millisecond))

	cur, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, epoch, cur.BucketStart)
	assert.Equal(t, 100.0, cur.Open)
	assert.Equal(t, 105.0, cur.High)
	assert.Equal(t, 98.0, cur.Low)
	assert.Equal(t, 98.0, cur.Close)
	assert.Empty(t, a.History())
}

func TestRecordRollsToNewBucket(t *testing.T) {
	a := NewAggregator(time.Second, 0)

	a.Record(100, epoch)
	a.Record(105, epoch.Add(400*time.Millisecond))
	a.Record(98, epoch.Add(900*time.Millisecond))
	a.Record(103, epoch.Add(1200*time.Millisecond))

	hist := a.History()
	require.Len(t, hist, 1)
	assert.Equal(t, domain.Candle{
		BucketStart: epoch,
		Open:        100, High: 105, Low: 98, Close: 98,
	}, hist[0])

	cur, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), cur.BucketStart)
	assert.Equal(t, 103.0, cur.Open)
	assert.Equal(t, 103.0, cur.Close)
}

func TestClosedCandlesAreImmutable(t *testing.T) {
	a := NewAggregator(time.Second, 0)

	a.Record(100, epoch)
	a.Record(103, epoch.Add(time.Second))

	before := a.History()
	require.Len(t, before, 1)

	// Further samples in the new bucket must not touch the closed candle.
	a.Record(50, epoch.Add(1500*time.Millisecond))
	a.Record(200, epoch.Add(1900*time.Millisecond))

	after := a.History()
	require.Len(t, after, 1)
	assert.Equal(t, before[0], after[0])
}

func TestHistoryEvictsOldest(t *testing.T) {
	a := NewAggregator(time.Second, 3)

	for i := 0; i < 6; i++ {
		a.Record(float64(100+i), epoch.Add(time.Duration(i)*time.Second))
	}

	hist := a.History()
	require.Len(t, hist, 3)
	// Oldest candles evicted first; buckets 2, 3, 4 survive.
	assert.Equal(t, epoch.Add(2*time.Second), hist[0].BucketStart)
	assert.Equal(t, epoch.Add(4*time.Second), hist[2].BucketStart)
}

func TestAllIncludesCurrent(t *testing.T) {
	a := NewAggregator(time.Second, 0)

	assert.Empty(t, a.All())

	a.Record(100, epoch)
	a.Record(101, epoch.Add(time.Second))

	all := a.All()
	require.Len(t, all, 2)
	assert.Equal(t, epoch, all[0].BucketStart)
	assert.Equal(t, epoch.Add(time.Second), all[1].BucketStart)
}

func TestSetIntervalResetsState(t *testing.T) {
	a := NewAggregator(time.Second, 0)

	a.Record(100, epoch)
	a.Record(101, epoch.Add(time.Second))

	a.SetInterval(5 * time.Second)

	assert.Equal(t, 5*time.Second, a.Interval())
	assert.Empty(t, a.History())
	_, ok := a.Current()
	assert.False(t, ok)

	// Same interval is a no-op.
	a.Record(100, epoch)
	a.SetInterval(5 * time.Second)
	_, ok = a.Current()
	assert.True(t, ok)
}

func TestReset(t *testing.T) {
	a := NewAggregator(time.Second, 0)
	a.Record(100, epoch)
	a.Record(101, epoch.Add(time.Second))

	a.Reset()

	assert.Empty(t, a.All())
	assert.Equal(t, time.Second, a.Interval())
}
