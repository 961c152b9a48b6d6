package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gorelax/types"
)

func TestPartitionMap(t *testing.T) {
	{ // Test PartitionMap
		getHisto := func(H, Np int) (histo map[int]int) {
			pm, err := NewPartitionMap(Np, H)
			require.NoError(t, err)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				maxK := pm.GetBucketDimension(np)
				histo[maxK]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{1: 32}, getHisto(34, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(258, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(289, 32))
		assert.Equal(t, 287, getTotal(getHisto(289, 32)))
		for H := 66; H < 3000; H++ {
			histo := getHisto(H, 32)
			assert.LessOrEqual(t, len(histo), 2) // Maximum imbalance of 1
			assert.Equal(t, H-2, getTotal(histo))
		}
	}
	{ // Every interior row is owned by exactly one worker, for every worker count
		for H := 3; H < 60; H++ {
			for n := 1; n <= H-2; n++ {
				owners := make([]int, H)
				for r := 0; r < n; r++ {
					b := SplitRows(r, n, H-2)
					assert.LessOrEqual(t, b[0], b[1])
					for row := b[0]; row < b[1]; row++ {
						owners[row]++
					}
				}
				assert.Equal(t, 0, owners[0])
				assert.Equal(t, 0, owners[H-1])
				for row := 1; row < H-1; row++ {
					assert.Equal(t, 1, owners[row], "H=%d n=%d row=%d", H, n, row)
				}
			}
		}
	}
	{ // Partitions are contiguous and ordered by rank
		pm, err := NewPartitionMap(4, 12)
		require.NoError(t, err)
		assert.Equal(t, [][2]int{{1, 3}, {3, 6}, {6, 8}, {8, 11}}, pm.Partitions)
		up, down := pm.Neighbors(0)
		assert.Equal(t, 3, up)
		assert.Equal(t, 1, down)
		up, down = pm.Neighbors(3)
		assert.Equal(t, 2, up)
		assert.Equal(t, 0, down)
	}
	{ // Test inverted bucket probe - find bucket that contains a row (efficiently)
		for H := 10; H < 500; H++ {
			pm, err := NewPartitionMap(5, H)
			require.NoError(t, err)
			for row := 1; row < H-1; row++ {
				tryCount, bn, min, max := pm.getBucketWithTryCount(row)
				mmin, mmax := pm.GetBucketRange(bn)
				assert.True(t, row >= min && row < max && min == mmin && max == mmax && tryCount <= 1)
			}
			bn, _, _ := pm.GetBucket(0)
			assert.Equal(t, -1, bn)
			bn, _, _ = pm.GetBucket(H - 1)
			assert.Equal(t, -1, bn)
		}
	}
	{ // Invalid worker counts and heights
		_, err := NewPartitionMap(0, 10)
		assert.Error(t, err)
		_, err = NewPartitionMap(9, 10)
		assert.Error(t, err)
		_, err = NewPartitionMap(1, 2)
		require.Error(t, err)
		// A height with no interior rows is a usage mistake, not a bad image
		var de *types.DimensionError
		assert.False(t, errors.As(err, &de))
		assert.Equal(t, types.ExitUsage, types.ExitCode(err))
	}
}
