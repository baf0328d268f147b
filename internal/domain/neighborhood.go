package domain

// AnalysisNeighborhood is one of the city's 41 reporting zones together with
// the informal neighborhood names it roughly corresponds to.
type AnalysisNeighborhood struct {
	Name        string   `json:"name"`
	CommonNames []string `json:"common_names"`
}

var analysisNeighborhoods = []AnalysisNeighborhood{
	{"Bayview Hunters Point", []string{"Bayview", "Hunters Point", "Butchertown"}},
	{"Bernal Heights", []string{"Bernal Heights"}},
	{"Castro/Upper Market", []string{"The Castro", "Upper Market", "Duboce Triangle"}},
	{"Chinatown", []string{"Chinatown"}},
	{"Excelsior", []string{"Excelsior", "Mission Terrace (parts)"}},
	{"Financial District/South Beach", []string{"Financial District", "South Beach", "Embarcadero (downtown portion)"}},
	{"Glen Park", []string{"Glen Park"}},
	{"Golden Gate Park", []string{"Golden Gate Park"}},
	{"Haight Ashbury", []string{"Haight-Ashbury", "Cole Valley (parts)", "Buena Vista area"}},
	{"Hayes Valley", []string{"Hayes Valley", "Civic Center fringe (west)"}},
	{"Inner Richmond", []string{"Inner Richmond", "Central Richmond"}},
	{"Inner Sunset", []string{"Inner Sunset"}},
	{"Japantown", []string{"Japantown", "Western Addition (northeast portion)"}},
	{"Lakeshore", []string{"Lakeshore", "Lake Merced area", "St. Francis Wood fringe"}},
	{"Lincoln Park", []string{"Lincoln Park", "Sea Cliff fringe"}},
	{"Lone Mountain/USF", []string{"USF area", "Lone Mountain", "Inner Anza Vista fringe"}},
	{"Marina", []string{"Marina", "Cow Hollow"}},
	{"McLaren Park", []string{"McLaren Park", "University Mound fringe"}},
	{"Mission", []string{"Mission District"}},
	{"Mission Bay", []string{"Mission Bay", "China Basin"}},
	{"Nob Hill", []string{"Nob Hill", "Lower Nob Hill"}},
	{"Noe Valley", []string{"Noe Valley"}},
	{"North Beach", []string{"North Beach", "Telegraph Hill"}},
	{"Oceanview/Merced/Ingleside", []string{"Oceanview", "Ingleside", "Merced Heights", "Lakeview"}},
	{"Outer Mission", []string{"Outer Mission", "Crocker-Amazon", "Geneva area"}},
	{"Outer Richmond", []string{"Outer Richmond"}},
	{"Pacific Heights", []string{"Pacific Heights", "Lower Pacific Heights"}},
	{"Portola", []string{"Portola", "Silver Terrace fringe"}},
	{"Potrero Hill", []string{"Potrero Hill", "Dogpatch fringe"}},
	{"Presidio", []string{"Presidio"}},
	{"Presidio Heights", []string{"Presidio Heights", "Laurel Heights fringe"}},
	{"Russian Hill", []string{"Russian Hill"}},
	{"Seacliff", []string{"Sea Cliff"}},
	{"South of Market", []string{"SoMa"}},
	{"Sunset/Parkside", []string{"Inner Sunset fringe", "Outer Sunset", "Parkside"}},
	{"Tenderloin", []string{"Tenderloin"}},
	{"Treasure Island", []string{"Treasure Island", "Yerba Buena Island"}},
	{"Twin Peaks", []string{"Twin Peaks", "Clarendon Heights"}},
	{"Visitacion Valley", []string{"Visitacion Valley"}},
	{"West of Twin Peaks", []string{"West Portal", "Forest Hill", "St. Francis Wood (parts)"}},
	{"Western Addition", []string{"Western Addition", "Alamo Square", "Fillmore", "Lower Haight fringe"}},
}

var analysisNeighborhoodSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(analysisNeighborhoods))
	for _, n := range analysisNeighborhoods {
		m[n.Name] = struct{}{}
	}
	return m
}()

// AnalysisNeighborhoods returns the 41 Analysis Neighborhoods in alphabetical
// order. The returned slice is a copy.
func AnalysisNeighborhoods() []AnalysisNeighborhood {
	out := make([]AnalysisNeighborhood, len(analysisNeighborhoods))
	for i, n := range analysisNeighborhoods {
		out[i] = AnalysisNeighborhood{
			Name:        n.Name,
			CommonNames: append([]string(nil), n.CommonNames...),
		}
	}
	return out
}

// IsAnalysisNeighborhood reports whether name is one of the 41 zones.
func IsAnalysisNeighborhood(name string) bool {
	_, ok := analysisNeighborhoodSet[name]
	return ok
}
