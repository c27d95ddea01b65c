package domain

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	Start uint64
	End   uint64
}

// String returns the range in "start-end" format.
func (r BlockRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Size returns the number of blocks in the range.
func (r BlockRange) Size() uint64 {
	return r.End - r.Start + 1
}

// Split splits the range into windows of at most maxSize blocks.
// Windows are contiguous, non-overlapping and cover the range exactly once.
func (r BlockRange) Split(maxSize uint64) []BlockRange {
	if r.Size() <= maxSize {
		return []BlockRange{r}
	}

	var windows []BlockRange
	current := r.Start

	for current <= r.End {
		end := min(current+maxSize-1, r.End)
		windows = append(windows, BlockRange{Start: current, End: end})
		current = end + 1
	}

	return windows
}

// PartitionChain partitions [0, latest] into windows of windowSize blocks.
func PartitionChain(latest, windowSize uint64) []BlockRange {
	if windowSize == 0 {
		return []BlockRange{{Start: 0, End: latest}}
	}
	return BlockRange{Start: 0, End: latest}.Split(windowSize)
}
