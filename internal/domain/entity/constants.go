package entity

// Marketing variants
const (
	VariantDigitaleSaeule = "Digitale Säule"
	VariantRoadsideScreen = "Roadside-Screen"
	VariantCityScreen     = "City-Screen"
	VariantMegaVision     = "MegaVision"
	VariantSuperMotion    = "SuperMotion"
)

// Side counts
const (
	SidesOne   = "einseitig"
	SidesTwo   = "doppelseitig"
	SidesThree = "dreiseitig"
)

var sideCounts = map[string]int{
	SidesOne:   1,
	SidesTwo:   2,
	SidesThree: 3,
}

// SideCount returns the numeric side count for a side label
func SideCount(label string) (int, bool) {
	n, ok := sideCounts[label]
	return n, ok
}

// Ownership categories
const (
	OwnerPrivate = "Privater Eigentümer"
	OwnerCity    = "Stadt"
)

// IsValidOwner returns true for a known ownership category
func IsValidOwner(owner string) bool {
	return owner == OwnerPrivate || owner == OwnerCity
}

// Build status values reported by the construction team
const (
	BuildNotStarted      = "Nicht begonnen"
	BuildPlanning        = "In Planung"
	BuildMaterialOrdered = "Materialbestellung"
	BuildFoundation      = "Fundament vorbereitet"
	BuildScaffolding     = "Gerüstaufbau"
	BuildElectrical      = "Elektrik installiert"
	BuildDisplayMounted  = "Display montiert"
	BuildCommissioning   = "Inbetriebnahme"
	BuildDone            = "Abgeschlossen"
)

var buildProgress = map[string]float64{
	BuildNotStarted:      0,
	BuildPlanning:        0.1,
	BuildMaterialOrdered: 0.2,
	BuildFoundation:      0.4,
	BuildScaffolding:     0.6,
	BuildElectrical:      0.7,
	BuildDisplayMounted:  0.8,
	BuildCommissioning:   0.9,
	BuildDone:            1.0,
}

// BuildProgress returns the completion fraction of a build status
func BuildProgress(status string) (float64, bool) {
	p, ok := buildProgress[status]
	return p, ok
}

// Power connection states
const (
	PowerNotRequested = "Nicht beantragt"
	PowerRequested    = "Beantragt"
	PowerApproved     = "Genehmigt"
	PowerPreparing    = "In Vorbereitung"
	PowerInstalled    = "Installiert"
	PowerActive       = "Aktiv"
)

var powerStates = map[string]bool{
	PowerNotRequested: true,
	PowerRequested:    true,
	PowerApproved:     true,
	PowerPreparing:    true,
	PowerInstalled:    true,
	PowerActive:       true,
}

// IsValidPowerConnection returns true for a known power connection state
func IsValidPowerConnection(state string) bool {
	return powerStates[state]
}

// IsPowerConnected reports whether the connection is ready for handover
func IsPowerConnected(state string) bool {
	return state == PowerInstalled || state == PowerActive
}

// Handover checklist items
const (
	CheckStructural    = "bauliche_abnahme"
	CheckElectrical    = "elektrische_abnahme"
	CheckNetwork       = "netzwerk_getestet"
	CheckCMS           = "cms_eingerichtet"
	CheckTestContent   = "test_content"
	CheckDocumentation = "dokumentation"
)

// ChecklistItems lists every item that must be confirmed before finalizing
var ChecklistItems = []string{
	CheckStructural,
	CheckElectrical,
	CheckNetwork,
	CheckCMS,
	CheckTestContent,
	CheckDocumentation,
}

// Identifier prefixes for integration ids
const (
	NetworkIDPrefix = "DS-"
	DMSIDPrefix     = "CMS-"
)
