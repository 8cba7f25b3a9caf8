package report

import "strings"

// Recommendation thresholds.
const (
	maskPM25      = 55.4
	sensitivePM25 = 35.4
	heatTempC     = 33.0
	rainyDayCount = 3
)

// Recommendation produces a short free-text advisory from fixed rules.
// When no rule fires it falls back to a safe-conditions message.
func Recommendation(s Summary) string {
	var tips []string

	if s.PM25Mean != nil {
		switch {
		case *s.PM25Mean > maskPM25:
			tips = append(tips, "Air quality is poor. Wear a mask outdoors and limit outdoor activity.")
		case *s.PM25Mean > sensitivePM25:
			tips = append(tips, "Air quality is unhealthy for sensitive groups. Reduce time spent outdoors.")
		}
	}
	if s.MaxTemp != nil && *s.MaxTemp > heatTempC {
		tips = append(tips, "Hot weather expected. Avoid strenuous midday activity and drink plenty of water.")
	}
	if s.RainyDays >= rainyDayCount {
		tips = append(tips, "Several rainy days ahead. Keep rain gear handy for outdoor plans.")
	}

	if len(tips) == 0 {
		return "Conditions are relatively safe. Keep monitoring daily weather changes."
	}
	return strings.Join(tips, " ")
}
