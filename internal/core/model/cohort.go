package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RetentionWindow is a fixed day offset at which cohort retention is measured.
type RetentionWindow int

const (
	D7  RetentionWindow = 7
	D30 RetentionWindow = 30
	D60 RetentionWindow = 60
	D90 RetentionWindow = 90
)

// RetentionWindows lists the measured windows in widening order.
var RetentionWindows = []RetentionWindow{D7, D30, D60, D90}

// Days returns the window length in days.
func (w RetentionWindow) Days() int { return int(w) }

// Duration returns the window length.
func (w RetentionWindow) Duration() time.Duration { return time.Duration(w) * 24 * time.Hour }

// LTVWindow is a fixed day offset at which cohort lifetime value is measured.
type LTVWindow int

const (
	LTV30  LTVWindow = 30
	LTV90  LTVWindow = 90
	LTV180 LTVWindow = 180
)

// LTVWindows lists the measured windows in widening order.
var LTVWindows = []LTVWindow{LTV30, LTV90, LTV180}

// Days returns the window length in days.
func (w LTVWindow) Days() int { return int(w) }

// Duration returns the window length.
func (w LTVWindow) Duration() time.Duration { return time.Duration(w) * 24 * time.Hour }

// Cohort is the aggregate behaviour of one acquisition month.
type Cohort struct {
	CohortMonth  time.Time
	CohortSize   int
	D7Retention  decimal.Decimal
	D30Retention decimal.Decimal
	D60Retention decimal.Decimal
	D90Retention decimal.Decimal
	LTV30        decimal.Decimal
	LTV90        decimal.Decimal
	LTV180       decimal.Decimal
	AvgCAC       decimal.Decimal
	PaybackDays  *int
}

// Retention returns the stored ratio for window w.
func (c Cohort) Retention(w RetentionWindow) decimal.Decimal {
	switch w {
	case D7:
		return c.D7Retention
	case D30:
		return c.D30Retention
	case D60:
		return c.D60Retention
	case D90:
		return c.D90Retention
	}
	return decimal.Zero
}

// SetRetention stores the ratio for window w.
func (c *Cohort) SetRetention(w RetentionWindow, v decimal.Decimal) {
	switch w {
	case D7:
		c.D7Retention = v
	case D30:
		c.D30Retention = v
	case D60:
		c.D60Retention = v
	case D90:
		c.D90Retention = v
	}
}

// LTV returns the stored value for window w.
func (c Cohort) LTV(w LTVWindow) decimal.Decimal {
	switch w {
	case LTV30:
		return c.LTV30
	case LTV90:
		return c.LTV90
	case LTV180:
		return c.LTV180
	}
	return decimal.Zero
}

// SetLTV stores the value for window w.
func (c *Cohort) SetLTV(w LTVWindow, v decimal.Decimal) {
	switch w {
	case LTV30:
		c.LTV30 = v
	case LTV90:
		c.LTV90 = v
	case LTV180:
		c.LTV180 = v
	}
}
