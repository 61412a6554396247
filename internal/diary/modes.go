package diary

import "strings"

const (
	ModePT           = "pt"
	ModeCar          = "car"
	ModeWalk         = "walk"
	ModeTransitWalk  = "transit_walk"
	defaultHierarchy = 99
)

// DefaultTransitActivityType is the pseudo activity the simulation inserts between transit legs.
const DefaultTransitActivityType = "pt interaction"

var modeHierarchy = map[string]int{
	ModePT:             0,
	ModeCar:            10,
	"avtaxi":           11,
	"drt":              12,
	"ride":             20,
	"bike":             30,
	ModeWalk:           40,
	ModeTransitWalk:    41,
	"access_walk":      50,
	"egress_walk":      50,
	"non_network_walk": 50,
}

var ptSubModes = map[string]bool{
	"rail":  true,
	"tram":  true,
	"bus":   true,
	"other": true,
	"detPt": true,
}

var walkModes = map[string]bool{
	ModeWalk:           true,
	ModeTransitWalk:    true,
	"access_walk":      true,
	"egress_walk":      true,
	"non_network_walk": true,
}

func IsWalkMode(mode string) bool { return walkModes[mode] }

func IsPTMode(mode string) bool { return mode == ModePT || ptSubModes[mode] }

func hierarchyOf(mode string) int {
	if IsPTMode(mode) {
		return modeHierarchy[ModePT]
	}
	if h, ok := modeHierarchy[mode]; ok {
		return h
	}
	return defaultHierarchy
}

// isTransitActivity reports pseudo activities that never become retained activities.
func isTransitActivity(actType, transitType string) bool {
	return actType == transitType || strings.Contains(actType, "interaction")
}
