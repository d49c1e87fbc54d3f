package staging

import (
	"net/url"
	"strings"

	"github.com/aevon-lab/growthmart/internal/core/model"
)

// genericSourceNames are storefront source tags that say where the checkout
// happened, not where the customer came from.
var genericSourceNames = map[string]bool{
	"web": true, "pos": true, "iphone": true, "android": true,
	"shopify_draft_order": true, "checkout": true, "": true,
}

// searchHosts are matched against the registrable part of a referrer host.
var searchHosts = []string{
	"google.", "bing.com", "yahoo.", "duckduckgo.com", "baidu.com",
	"yandex.", "ecosia.org", "search.brave.com",
}

// attribution is the first-pass channel label of an order.
type attribution struct {
	label    string
	method   model.AttributionMethod
	campaign string
}

// extractAttribution applies the label precedence chain: explicit UTM tags,
// then the customer journey summary, then the storefront source or referrer
// tag, then a search referrer, then direct. It always returns a label.
func extractAttribution(order map[string]interface{}) attribution {
	if a, ok := fromUTM(order); ok {
		return a
	}
	if a, ok := fromJourney(object(order, "customer_journey_summary")); ok {
		return a
	}

	referrerHost := hostOf(str(order, "referring_site"))
	if source := strings.ToLower(str(order, "source_name")); !genericSourceNames[source] {
		return attribution{label: source, method: model.AttributionTag}
	}
	if referrerHost != "" && !isSearchHost(referrerHost) {
		return attribution{label: referrerHost + "/referral", method: model.AttributionTag}
	}
	if isSearchHost(referrerHost) {
		return attribution{label: "organic", method: model.AttributionSearch}
	}
	return attribution{label: "direct", method: model.AttributionDirect}
}

// fromUTM reads top-level utm_* fields, falling back to the landing page query.
func fromUTM(order map[string]interface{}) (attribution, bool) {
	source := str(order, "utm_source")
	medium := str(order, "utm_medium")
	campaign := str(order, "utm_campaign")

	if source == "" {
		if q := queryOf(str(order, "landing_site")); q != nil {
			source = strings.TrimSpace(q.Get("utm_source"))
			medium = strings.TrimSpace(q.Get("utm_medium"))
			campaign = strings.TrimSpace(q.Get("utm_campaign"))
		}
	}
	if source == "" {
		return attribution{}, false
	}
	return attribution{label: joinLabel(source, medium), method: model.AttributionUTM, campaign: campaign}, true
}

// fromJourney reads the last visit, then the first visit, of a journey summary.
func fromJourney(journey map[string]interface{}) (attribution, bool) {
	if journey == nil {
		return attribution{}, false
	}
	for _, key := range []string{"last_visit", "first_visit"} {
		visit := object(journey, key)
		if visit == nil {
			continue
		}
		if source := str(visit, "utm_parameters.source"); source != "" {
			return attribution{
				label:    joinLabel(source, str(visit, "utm_parameters.medium")),
				method:   model.AttributionJourney,
				campaign: str(visit, "utm_parameters.campaign"),
			}, true
		}
		if source := str(visit, "source"); source != "" {
			return attribution{
				label:  joinLabel(source, strings.ToLower(str(visit, "source_type"))),
				method: model.AttributionJourney,
			}, true
		}
		if q := queryOf(str(visit, "landing_page")); q != nil && q.Get("utm_source") != "" {
			return attribution{
				label:    joinLabel(q.Get("utm_source"), q.Get("utm_medium")),
				method:   model.AttributionJourney,
				campaign: q.Get("utm_campaign"),
			}, true
		}
	}
	return attribution{}, false
}

func joinLabel(source, medium string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	medium = strings.ToLower(strings.TrimSpace(medium))
	if medium == "" {
		return source
	}
	return source + "/" + medium
}

func queryOf(raw string) url.Values {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	q := u.Query()
	if len(q) == 0 {
		return nil
	}
	return q
}

// hostOf returns the lower-cased host of a referrer URL without "www.".
func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func isSearchHost(host string) bool {
	if host == "" {
		return false
	}
	for _, h := range searchHosts {
		if strings.HasPrefix(host, h) || strings.Contains(host, "."+h) {
			return true
		}
	}
	return false
}
