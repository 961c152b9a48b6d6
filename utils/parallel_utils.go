package utils

import (
	"fmt"
)

// PartitionMap splits the interior rows [1, MaxIndex-1) of a bordered grid
// into ParallelDegree contiguous buckets, one per worker.
type PartitionMap struct {
	MaxIndex       int // Grid height, including the two border rows
	ParallelDegree int
	Partitions     [][2]int // Beginning and end row of each partition
}

func NewPartitionMap(ParallelDegree, height int) (pm *PartitionMap, err error) {
	if height < 3 {
		return nil, fmt.Errorf("height %d leaves no interior rows, a bordered grid needs at least 3", height)
	}
	if ParallelDegree < 1 || ParallelDegree > height-2 {
		return nil, fmt.Errorf("worker count %d must be between 1 and %d for a grid of height %d",
			ParallelDegree, height-2, height)
	}
	pm = &PartitionMap{
		MaxIndex:       height,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = SplitRows(n, ParallelDegree, height-2)
	}
	return
}

// SplitRows returns the half open range of grid rows owned by rank. The
// interior starts at row 1, boundaries fall on integer division so the
// imbalance between workers is at most one row.
func SplitRows(rank, workers, interior int) (bucket [2]int) {
	bucket[0] = 1 + rank*interior/workers
	bucket[1] = 1 + (rank+1)*interior/workers
	return
}

// GetBucket finds the worker owning row, bucketNum is -1 for a border or out of
// range row.
func (pm *PartitionMap) GetBucket(row int) (bucketNum, min, max int) {
	_, bucketNum, min, max = pm.getBucketWithTryCount(row)
	return
}

func (pm *PartitionMap) getBucketWithTryCount(row int) (tryCount, bucketNum, min, max int) {
	if row < 1 || row >= pm.MaxIndex-1 {
		return 0, -1, 0, 0
	}
	// Initial guess
	bucketNum = (row - 1) * pm.ParallelDegree / (pm.MaxIndex - 2)
	for !(pm.Partitions[bucketNum][0] <= row && pm.Partitions[bucketNum][1] > row) {
		if pm.Partitions[bucketNum][0] > row {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return 0, -1, 0, 0
		}
		tryCount++
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (rowMin, rowMax int) {
	rowMin, rowMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (rows int) {
	var (
		r1, r2 = pm.GetBucketRange(bn)
	)
	rows = r2 - r1
	return
}

// Neighbors returns the ranks above and below bn on the ring
func (pm *PartitionMap) Neighbors(bn int) (up, down int) {
	var (
		NP = pm.ParallelDegree
	)
	up = (bn - 1 + NP) % NP
	down = (bn + 1) % NP
	return
}
