package customfit

import "time"

// Clock abstracts time so tests can drive session rotation and flush
// timers deterministically (see customfittest.FakeClock). Go's time.Now()
// already carries a monotonic reading that time.Since/Sub use internally,
// which is this SDK's answer to the §9 open question on clock skew:
// session-age and TTL math go through Since/Sub on time.Time values. Only
// values obtained from a Clock in this process carry a monotonic reading;
// session times restored from the KV store are rebuilt from Unix
// milliseconds, so differences against them are wall-clock differences.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default, real-time Clock implementation.
var SystemClock Clock = systemClock{}

// NowMs returns the clock's current time as Unix milliseconds, the wire
// format used by EventRecord.EventTimestamp and SummaryRecord.SummaryTimeMs.
func NowMs(c Clock) int64 {
	return c.Now().UnixMilli()
}
