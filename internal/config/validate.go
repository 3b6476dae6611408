package config

import (
	"errors"
	"fmt"
)

// Validate rejects configurations the engine cannot safely run with.
// A capability that is enabled but missing its wiring is fatal at startup;
// failing later, mid-cycle, would be silent.
func (c Config) Validate() error {
	var errs []error

	r := c.Routing
	if r.ApplyThreshold < r.OutreachThreshold || r.OutreachThreshold < r.ReviewThreshold {
		errs = append(errs, fmt.Errorf(
			"routing thresholds must be ordered apply >= outreach >= review (got %d/%d/%d)",
			r.ApplyThreshold, r.OutreachThreshold, r.ReviewThreshold))
	}
	if r.MaxDailyApplications < 0 || r.MaxDailyOutreach < 0 {
		errs = append(errs, errors.New("daily caps must not be negative"))
	}
	if c.Dedup.TTLDays <= 0 {
		errs = append(errs, errors.New("dedup.ttl_days must be positive"))
	}
	if c.FollowUp.FirstAfterDays >= c.FollowUp.FinalAfterDays {
		errs = append(errs, fmt.Errorf("follow_up.first_after_days (%d) must be before final_after_days (%d)",
			c.FollowUp.FirstAfterDays, c.FollowUp.FinalAfterDays))
	}

	if c.IMAP.Enabled {
		if c.IMAP.Host == "" || c.IMAP.Username == "" {
			errs = append(errs, errors.New("imap enabled but host/username missing"))
		}
	}
	if c.Apply.Enabled && !c.IMAP.Enabled {
		errs = append(errs, errors.New("apply enabled but imap disabled: verification codes cannot be read"))
	}
	if c.SMTP.Enabled {
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			errs = append(errs, errors.New("smtp enabled but host/from missing"))
		}
	}

	return errors.Join(errs...)
}
