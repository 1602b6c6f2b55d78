package pipeline

import (
	"fmt"
	"sync/atomic"
)

// Stats counts what one run did. All fields are updated concurrently
// by the workers and safe to read while the run is in flight.
type Stats struct {
	Pages      atomic.Int64
	Items      atomic.Int64
	Episodes   atomic.Int64
	CacheHits  atomic.Int64
	Resolved   atomic.Int64
	Failed     atomic.Int64
	Duplicates atomic.Int64
	Emitted    atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf(
		"pages=%d items=%d episodes=%d cache_hits=%d resolved=%d failed=%d duplicates=%d emitted=%d",
		s.Pages.Load(), s.Items.Load(), s.Episodes.Load(), s.CacheHits.Load(),
		s.Resolved.Load(), s.Failed.Load(), s.Duplicates.Load(), s.Emitted.Load(),
	)
}
