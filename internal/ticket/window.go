package ticket

import "time"

// Window turns relative offsets into absolute unix timestamps.
// The zero value reads the wall clock.
type Window struct {
	Now func() time.Time
}

// TimestampAfter returns the current unix time plus seconds.
func (w Window) TimestampAfter(seconds int64) int64 {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return now().Unix() + seconds
}
