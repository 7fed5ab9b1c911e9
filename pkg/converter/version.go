package converter

import "time"

const versionsPerSecond = 1_000_000

// versionClock derives a 64-bit ordering key from second-resolution event
// times. Stream timestamps cannot order records that land in the same
// second, so the clock disambiguates them with an arrival counter. The
// counter overflows into the next second's range past one million records a
// second, which is an accepted bound.
//
// A clock belongs to exactly one shard worker and is not safe for concurrent
// use. Resetting it (by constructing a fresh converter) only affects
// relative ordering within that shard's own stream, so restarts are safe.
type versionClock struct {
	lastSecond     time.Time
	seenThisSecond uint64
}

// next returns epoch seconds times 1e6 plus the number of records already
// seen in that second. A record whose timestamp is behind lastSecond gets a
// zero counter without touching clock state; two such arrivals in the same
// second can collide. Out-of-order arrivals are rare enough that this is an
// accepted weakness rather than something the clock tries to repair.
func (c *versionClock) next(eventTime time.Time) uint64 {
	switch {
	case c.lastSecond.IsZero():
		c.lastSecond = eventTime
	case eventTime.Before(c.lastSecond):
		return uint64(eventTime.Unix()) * versionsPerSecond
	case eventTime.After(c.lastSecond):
		c.seenThisSecond = 0
		c.lastSecond = eventTime
	default:
		c.seenThisSecond++
	}

	return uint64(eventTime.Unix())*versionsPerSecond + c.seenThisSecond
}
