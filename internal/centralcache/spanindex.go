package centralcache

import "sort"

// spanRecord associates one run with the size class it has been sliced
// into and the count of blocks from that run currently handed out
// (spec.md §3 "Span record"). blockSize never changes for the life of a
// record (spec.md invariant 5).
type spanRecord struct {
	runStart  uintptr
	runSize   int32
	blockSize int32
	inUse     int32
}

func (s *spanRecord) contains(addr uintptr) bool {
	return addr >= s.runStart && addr < s.runStart+uintptr(s.runSize)
}

// spanIndex is the per-class "ordered map keyed by run start address"
// spec.md §3 calls for: a sorted slice searched with sort.Search gives
// the predecessor query spec.md §9 explicitly endorses as an alternative
// to a balanced tree for this access pattern (infrequent insertion, one
// predecessor lookup per Allocate/Deallocate).
type spanIndex struct {
	records []*spanRecord
}

// insert adds a freshly created span record, keeping records sorted by
// runStart.
func (idx *spanIndex) insert(r *spanRecord) {
	i := sort.Search(len(idx.records), func(i int) bool { return idx.records[i].runStart >= r.runStart })
	idx.records = append(idx.records, nil)
	copy(idx.records[i+1:], idx.records[i:])
	idx.records[i] = r
}

// owner returns the span record whose run contains addr: the predecessor
// of addr by runStart (spec.md §4.3 "pageMap.upper_bound(block) − 1").
func (idx *spanIndex) owner(addr uintptr) *spanRecord {
	i := sort.Search(len(idx.records), func(i int) bool { return idx.records[i].runStart > addr })
	if i == 0 {
		return nil
	}
	r := idx.records[i-1]
	if !r.contains(addr) {
		return nil
	}
	return r
}

// remove drops r from the index. r must be present.
func (idx *spanIndex) remove(r *spanRecord) {
	i := sort.Search(len(idx.records), func(i int) bool { return idx.records[i].runStart >= r.runStart })
	if i >= len(idx.records) || idx.records[i] != r {
		return
	}
	idx.records = append(idx.records[:i], idx.records[i+1:]...)
}
