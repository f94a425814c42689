package domain

import "fmt"

// SourceType identifies which upstream interface a gage's readings come from.
type SourceType string

const (
	SourceUSGS    SourceType = "USGS"
	SourceDWR     SourceType = "DWR"
	SourceWYSEO   SourceType = "WYSEO"
	SourcePRR     SourceType = "PRR"
	SourceVirtual SourceType = "VIRTUAL"
)

// ParseSourceType validates a source type string from the gage registry.
func ParseSourceType(s string) (SourceType, error) {
	switch t := SourceType(s); t {
	case SourceUSGS, SourceDWR, SourceWYSEO, SourcePRR, SourceVirtual:
		return t, nil
	default:
		return "", fmt.Errorf("unknown gage source type %q", s)
	}
}

// Units is the display and rounding unit for a gage's readings.
type Units string

const (
	UnitCFS      Units = "cfs"
	UnitFeet     Units = "feet"
	UnitAcreFeet Units = "ac-ft"
)

// ParseUnits validates a units string from the gage registry.
func ParseUnits(s string) (Units, error) {
	switch u := Units(s); u {
	case UnitCFS, UnitFeet, UnitAcreFeet:
		return u, nil
	default:
		return "", fmt.Errorf("unknown units %q", s)
	}
}

// Recipe names a virtual-gage computation over two real input series.
type Recipe string

const (
	// RecipeDifference subtracts input B from input A on their shared timestamps.
	RecipeDifference Recipe = "difference"
	// RecipeInflow estimates reservoir inflow from storage rate of change
	// (input A, ac-ft) plus the downstream flow (input B, cfs).
	RecipeInflow Recipe = "inflow"
)

// ParseRecipe validates a virtual-gage recipe name from the gage registry.
func ParseRecipe(s string) (Recipe, error) {
	switch r := Recipe(s); r {
	case RecipeDifference, RecipeInflow:
		return r, nil
	default:
		return "", fmt.Errorf("unknown virtual recipe %q", s)
	}
}

// GageRef identifies a gage by its registry key.
type GageRef struct {
	ID   string
	Type SourceType
}

// Gage is one monitoring point, real or virtual. Immutable after registry load.
type Gage struct {
	ID       string
	Type     SourceType
	River    string
	Location string
	Region   string
	Units    Units
	Menu     string

	// Virtual gages only.
	Recipe Recipe
	Inputs []GageRef
}

// DataFile returns the gage's flat data file name.
func (g Gage) DataFile() string {
	return g.ID + ".cfs"
}

// ImageFile returns the gage's hydrograph image file name. USGS images are
// downloaded GIFs from the gage page; everything else is rendered locally as PNG.
func (g Gage) ImageFile() string {
	if g.Type == SourceUSGS {
		return g.ID + ".gif"
	}
	return g.ID + ".png"
}

// PageURL returns the upstream page a human would visit for this gage, used
// for dashboard links. Virtual gages have no upstream page.
func (g Gage) PageURL() string {
	switch g.Type {
	case SourceUSGS:
		return "https://waterdata.usgs.gov/nwis/uv?site_no=" + g.ID
	case SourceDWR:
		return "https://dwr.state.co.us/Tools/Stations/" + g.ID
	case SourceWYSEO:
		return "https://seoflow.wyo.gov/Data/DataSet/Summary/Location/014CWT/DataSet/Discharge/Tunnel"
	case SourcePRR:
		return "https://poudrerockreport.com/"
	default:
		return ""
	}
}

func (g Gage) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", g.ID, g.Type, g.River, g.Location)
}
