package semtok

import (
	"sync"
)

// buffers that grew past this are dropped instead of going back to the pool
const maxPooledRanges = 4096

var rangePool = sync.Pool{
	New: func() any {
		s := make([]SemanticRange, 0, 128)
		return &s
	},
}

func getRanges() *[]SemanticRange {
	return rangePool.Get().(*[]SemanticRange)
}

func putRanges(s *[]SemanticRange) {
	if cap(*s) > maxPooledRanges {
		return
	}
	clear(*s)
	*s = (*s)[:0]
	rangePool.Put(s)
}
