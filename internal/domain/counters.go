package domain

import "time"

// DailyCounters are the hard caps ledger for one calendar day.
type DailyCounters struct {
	Date             string // YYYY-MM-DD, local time
	ApplicationsSent int
	OutreachSent     int
}

// Caps is the remaining budget handed to the router.
type Caps struct {
	Applications int
	Outreach     int
}

// DayKey formats t as the counters' local-date key. Counters reset at the
// local-midnight boundary simply by keying on this value.
func DayKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// Remaining converts sent counts plus configured maxima into router caps.
func (c DailyCounters) Remaining(maxApps, maxOutreach int) Caps {
	r := Caps{
		Applications: maxApps - c.ApplicationsSent,
		Outreach:     maxOutreach - c.OutreachSent,
	}
	if r.Applications < 0 {
		r.Applications = 0
	}
	if r.Outreach < 0 {
		r.Outreach = 0
	}
	return r
}
