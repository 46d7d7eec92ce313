package optout

import (
	"strings"

	"github.com/quietroute/optout-api/pkg/model"
)

// routeClass maps a carrier-route type to its display label and default
// household band. The leading character of the route code encodes the type
// in USPS data (C city, R rural, H highway contract, B PO box section,
// G general delivery).
type routeClass struct {
	label      string
	households int
}

var routeClasses = map[byte]routeClass{
	'C': {label: "City Delivery", households: 450},
	'R': {label: "Rural Route", households: 350},
	'H': {label: "Highway Contract Route", households: 250},
	'B': {label: "PO Box Section", households: 200},
	'G': {label: "General Delivery", households: 150},
}

// defaultHouseholds is the band used when the route code cannot be
// classified.
const defaultHouseholds = 400

// EstimateHouseholds produces a heuristic household count for a carrier
// route. A recognized route type yields its band with medium confidence; an
// unclassified code falls back to the global default with low confidence.
// The "high" tier is never produced here; only a verified count from the
// store earns it. State and zip are part of the contract for future
// band refinement but do not affect the result today.
func EstimateHouseholds(carrierRouteCode, state, zipCode string) model.HouseholdEstimate {
	code := strings.ToUpper(strings.TrimSpace(carrierRouteCode))
	if code != "" {
		if class, ok := routeClasses[code[0]]; ok {
			return model.HouseholdEstimate{
				Count:      class.households,
				Source:     model.EstimateSourceHeuristic,
				Confidence: model.ConfidenceMedium,
			}
		}
	}
	return model.HouseholdEstimate{
		Count:      defaultHouseholds,
		Source:     model.EstimateSourceDefault,
		Confidence: model.ConfidenceLow,
	}
}

// RouteTypeLabel returns a human-readable name for the route classification.
func RouteTypeLabel(carrierRouteCode string) string {
	code := strings.ToUpper(strings.TrimSpace(carrierRouteCode))
	if code != "" {
		if class, ok := routeClasses[code[0]]; ok {
			return class.label
		}
	}
	return "Carrier Route"
}
