package consensus

import "slices"

// MedianTimeBlocks is the number of ancestors the median time is taken
// over.
const MedianTimeBlocks = 11

// MedianTime returns the median of up to the last MedianTimeBlocks
// timestamps. It returns 0 for an empty slice.
func MedianTime(timestamps []uint32) uint32 {
	if len(timestamps) == 0 {
		return 0
	}
	if len(timestamps) > MedianTimeBlocks {
		timestamps = timestamps[len(timestamps)-MedianTimeBlocks:]
	}
	sorted := slices.Clone(timestamps)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}
