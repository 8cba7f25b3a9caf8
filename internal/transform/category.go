package transform

// PM2.5 categories, ordered by severity.
const (
	CategoryUnknown       = "Unknown"
	CategoryGood          = "Good"
	CategoryModerate      = "Moderate"
	CategorySensitive     = "Unhealthy for sensitive groups"
	CategoryUnhealthy     = "Unhealthy"
	CategoryVeryUnhealthy = "Very unhealthy"
	CategoryHazardous     = "Hazardous"
)

// CategorizePM25 classifies a PM2.5 concentration (µg/m³) into a coarse
// bucket. This is not a full AQI computation. Boundaries are inclusive on
// the lower bucket: exactly 12 is Good, exactly 35.4 is Moderate.
func CategorizePM25(v *float64) string {
	if v == nil {
		return CategoryUnknown
	}
	switch {
	case *v <= 12:
		return CategoryGood
	case *v <= 35.4:
		return CategoryModerate
	case *v <= 55.4:
		return CategorySensitive
	case *v <= 150.4:
		return CategoryUnhealthy
	case *v <= 250.4:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}
