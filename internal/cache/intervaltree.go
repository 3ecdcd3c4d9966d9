package cache

import "sort"

// IntervalTree provides O(log n + k) overlap queries using a sorted-slice approach.
// Items are loaded once and never modified after build.
type IntervalTree[T any] struct {
	intervals []interval[T]
	maxEnd    []int64 // maxEnd[i] = max(End) for intervals[:i+1]
}

type interval[T any] struct {
	start int64
	end   int64
	item  T
}

// BuildIntervalTree creates an interval tree from items using bounds to
// extract each item's inclusive [start, end] range.
func BuildIntervalTree[T any](items []T, bounds func(T) (int64, int64)) *IntervalTree[T] {
	if len(items) == 0 {
		return &IntervalTree[T]{}
	}

	intervals := make([]interval[T], len(items))
	for i, it := range items {
		s, e := bounds(it)
		intervals[i] = interval[T]{start: s, end: e, item: it}
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	// Prefix-max array: maxEnd[i] = max(end) for intervals[0..i]
	maxEnd := make([]int64, len(intervals))
	maxEnd[0] = intervals[0].end
	for i := 1; i < len(intervals); i++ {
		maxEnd[i] = intervals[i].end
		if maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}

	return &IntervalTree[T]{intervals: intervals, maxEnd: maxEnd}
}

// Len returns the number of stored intervals.
func (t *IntervalTree[T]) Len() int {
	return len(t.intervals)
}

// FindOverlaps returns all items whose range contains pos.
func (t *IntervalTree[T]) FindOverlaps(pos int64) []T {
	return t.FindRange(pos, pos)
}

// FindRange returns all items whose range overlaps [start, end], ordered by start.
func (t *IntervalTree[T]) FindRange(start, end int64) []T {
	if len(t.intervals) == 0 {
		return nil
	}

	// hi is the first index with start > end; candidates are [0, hi).
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > end
	})

	// Scan backwards only while some earlier interval can still reach start.
	lo := hi
	for lo > 0 && t.maxEnd[lo-1] >= start {
		lo--
	}

	var result []T
	for i := lo; i < hi; i++ {
		if t.intervals[i].end >= start {
			result = append(result, t.intervals[i].item)
		}
	}
	return result
}
