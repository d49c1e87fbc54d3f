package channel

import "strings"

// Vocabulary identifies which source universe a raw label was drawn from.
type Vocabulary uint8

const (
	// OrderVocabulary is storefront attribution: "source/medium" pairs taken
	// from UTM tags, customer-journey objects or referrer tags.
	OrderVocabulary Vocabulary = iota + 1
	// TrafficVocabulary is the analytics platform's channel-group strings
	// ("Paid Social", "Organic Search", ...).
	TrafficVocabulary
)

func (v Vocabulary) String() string {
	switch v {
	case OrderVocabulary:
		return "order"
	case TrafficVocabulary:
		return "traffic"
	default:
		return "unknown"
	}
}

var (
	metaSources = map[string]bool{
		"facebook": true, "fb": true, "facebook.com": true, "m.facebook.com": true,
		"l.facebook.com": true, "instagram": true, "ig": true, "instagram.com": true,
		"l.instagram.com": true, "meta": true, "messenger": true, "audience_network": true,
	}
	googleSources = map[string]bool{
		"google": true, "google_ads": true, "googleads": true, "adwords": true,
		"gads": true, "youtube": true, "youtube.com": true, "google-shopping": true,
		"pmax": true, "dv360": true,
	}
	emailSources = map[string]bool{
		"email": true, "klaviyo": true, "mailchimp": true, "newsletter": true,
		"omnisend": true, "sendgrid": true, "shopify_email": true, "attentive": true,
	}
	affiliateSources = map[string]bool{
		"affiliate": true, "impact": true, "refersion": true, "shareasale": true,
		"awin": true, "cj": true, "rakuten": true, "partnerize": true, "skimlinks": true,
	}
	searchEngines = map[string]bool{
		"google.com": true, "www.google.com": true, "bing": true, "bing.com": true,
		"www.bing.com": true, "yahoo": true, "search.yahoo.com": true,
		"duckduckgo": true, "duckduckgo.com": true, "baidu": true, "yandex": true,
		"ecosia": true, "ecosia.org": true,
	}
	organicSources = map[string]bool{
		"organic": true, "seo": true,
	}
	directSources = map[string]bool{
		"direct": true, "(direct)": true, "(none)": true, "none": true,
	}

	paidMediums = map[string]bool{
		"cpc": true, "ppc": true, "paid": true, "paidsocial": true, "paid_social": true,
		"paid-social": true, "cpm": true, "display": true, "social_paid": true,
		"paidsearch": true, "paid_search": true, "shopping": true, "video": true,
	}
	organicMediums = map[string]bool{
		"organic": true, "seo": true, "search": true,
	}
	emailMediums = map[string]bool{
		"email": true, "e-mail": true, "newsletter": true, "sms": true, "flow": true, "campaign_email": true,
	}
	affiliateMediums = map[string]bool{
		"affiliate": true, "affiliates": true, "partner": true, "referral": true,
	}
)

// trafficGroups maps analytics channel groups onto canonical channels.
// Keys are lower-cased; "Paid Social" and "paid social" resolve the same way.
var trafficGroups = map[string]Channel{
	"paid social":               Meta,
	"paid search":               Google,
	"paid shopping":             Google,
	"paid video":                Google,
	"display":                   Google,
	"cross-network":             Google,
	"organic search":            Organic,
	"organic shopping":          Organic,
	"organic social":            Organic,
	"organic video":             Organic,
	"email":                     Email,
	"sms":                       Email,
	"mobile push notifications": Email,
	"affiliates":                Affiliate,
	"affiliate":                 Affiliate,
	"referral":                  Affiliate,
	"direct":                    Direct,
	"(direct)":                  Direct,
}

// Resolve maps a raw attribution label onto a canonical channel. It never
// fails: labels it does not recognise resolve to Other.
func Resolve(label string, vocab Vocabulary) Channel {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return Other
	}

	switch vocab {
	case TrafficVocabulary:
		return resolveTraffic(normalized)
	case OrderVocabulary:
		return resolveOrder(normalized)
	default:
		return Other
	}
}

func resolveTraffic(group string) Channel {
	if c, ok := trafficGroups[group]; ok {
		return c
	}
	// Custom channel groups are free text; fall back on the order rules for
	// labels like "facebook / cpc" that some properties configure.
	if strings.Contains(group, "/") {
		return resolveOrder(group)
	}
	return Other
}

func resolveOrder(label string) Channel {
	source, medium := splitLabel(label)

	switch {
	case directSources[source] && (medium == "" || directSources[medium]):
		return Direct
	case emailMediums[medium] || emailSources[source]:
		return Email
	case metaSources[source]:
		return Meta
	case googleSources[source] && !organicMediums[medium]:
		return Google
	case googleSources[source], organicSources[source], searchEngines[source]:
		if paidMediums[medium] {
			// Paid search outside Google has no canonical home.
			return Other
		}
		return Organic
	case affiliateSources[source] || affiliateMediums[medium]:
		return Affiliate
	case organicMediums[medium]:
		return Organic
	}
	return Other
}

func splitLabel(label string) (source, medium string) {
	source, medium, _ = strings.Cut(label, "/")
	return strings.TrimSpace(source), strings.TrimSpace(medium)
}
