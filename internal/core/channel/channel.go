package channel

import "fmt"

// Channel is the canonical marketing channel. The set is closed: every
// attribution path in the pipeline ends in one of the values below.
type Channel uint8

const (
	Other Channel = iota + 1
	Meta
	Google
	Email
	Organic
	Affiliate
	Direct
)

// All lists every canonical channel in dimension-id order.
var All = []Channel{Other, Meta, Google, Email, Organic, Affiliate, Direct}

var slugs = map[Channel]string{
	Other:     "other",
	Meta:      "meta",
	Google:    "google",
	Email:     "email",
	Organic:   "organic",
	Affiliate: "affiliate",
	Direct:    "direct",
}

var displayNames = map[Channel]string{
	Other:     "Other",
	Meta:      "Meta Ads",
	Google:    "Google Ads",
	Email:     "Email",
	Organic:   "Organic Search",
	Affiliate: "Affiliate & Referral",
	Direct:    "Direct",
}

// ID is the stable dim_channel primary key for the channel.
func (c Channel) ID() int { return int(c) }

// Slug returns the canonical slug. Unknown values render as "other".
func (c Channel) Slug() string {
	if s, ok := slugs[c]; ok {
		return s
	}
	return slugs[Other]
}

// DisplayName returns the human readable dimension label.
func (c Channel) DisplayName() string {
	if s, ok := displayNames[c]; ok {
		return s
	}
	return displayNames[Other]
}

func (c Channel) String() string { return c.Slug() }

// Valid reports whether c is a member of the closed set.
func (c Channel) Valid() bool {
	_, ok := slugs[c]
	return ok
}

// Paid reports whether the channel carries campaign-level spend.
func (c Channel) Paid() bool {
	return c == Meta || c == Google
}

// FromSlug parses a stored slug back into a Channel.
func FromSlug(s string) (Channel, error) {
	for c, slug := range slugs {
		if slug == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown channel slug %q", s)
}

// FromID parses a dim_channel id.
func FromID(id int) (Channel, error) {
	c := Channel(id)
	if id <= 0 || id > 255 || !c.Valid() {
		return 0, fmt.Errorf("unknown channel id %d", id)
	}
	return c, nil
}
