package normalize

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// geoEntry is one canonical area in the registry
type geoEntry struct {
	GeoID   string
	GeoName string
	GeoType models.GeoType
}

// canonicalGeos is the registry of areas the pipeline resolves against.
// GeoIDs are stable slugs shared with the portfolio and dashboard
// collaborators, so entries are appended, never renamed.
var canonicalGeos = []geoEntry{
	{"dubai", "Dubai", models.GeoTypeCity},
	{"deira", "Deira", models.GeoTypeDistrict},
	{"bur_dubai", "Bur Dubai", models.GeoTypeDistrict},
	{"jvc", "Jumeirah Village Circle", models.GeoTypeCommunity},
	{"jvt", "Jumeirah Village Triangle", models.GeoTypeCommunity},
	{"dubai_marina", "Dubai Marina", models.GeoTypeCommunity},
	{"jlt", "Jumeirah Lakes Towers", models.GeoTypeCommunity},
	{"jbr", "Jumeirah Beach Residence", models.GeoTypeCommunity},
	{"downtown_dubai", "Downtown Dubai", models.GeoTypeCommunity},
	{"business_bay", "Business Bay", models.GeoTypeCommunity},
	{"palm_jumeirah", "Palm Jumeirah", models.GeoTypeCommunity},
	{"dubai_hills_estate", "Dubai Hills Estate", models.GeoTypeCommunity},
	{"arabian_ranches", "Arabian Ranches", models.GeoTypeCommunity},
	{"al_barsha", "Al Barsha", models.GeoTypeCommunity},
	{"al_furjan", "Al Furjan", models.GeoTypeCommunity},
	{"arjan", "Arjan", models.GeoTypeCommunity},
	{"mirdif", "Mirdif", models.GeoTypeCommunity},
	{"motor_city", "Motor City", models.GeoTypeCommunity},
	{"dubai_sports_city", "Dubai Sports City", models.GeoTypeCommunity},
	{"dubai_silicon_oasis", "Dubai Silicon Oasis", models.GeoTypeCommunity},
	{"international_city", "International City", models.GeoTypeCommunity},
	{"discovery_gardens", "Discovery Gardens", models.GeoTypeCommunity},
	{"damac_hills", "Damac Hills", models.GeoTypeCommunity},
	{"town_square", "Town Square", models.GeoTypeCommunity},
	{"meydan", "Meydan", models.GeoTypeCommunity},
	{"dubai_creek_harbour", "Dubai Creek Harbour", models.GeoTypeCommunity},
	{"bluewaters", "Bluewaters Island", models.GeoTypeCommunity},
	{"difc", "DIFC", models.GeoTypeCommunity},
	{"dubai_south", "Dubai South", models.GeoTypeCommunity},
	{"jumeirah_golf_estates", "Jumeirah Golf Estates", models.GeoTypeCommunity},
	{"mbr_city", "MBR City", models.GeoTypeCommunity},
	{"dubai_investment_park", "Dubai Investment Park", models.GeoTypeCommunity},
}

// geoAliases maps cleaned alias strings to registry GeoIDs. The canonical
// name itself is always an alias.
var geoAliases = map[string]string{
	"jumeirah village circle":              "jvc",
	"jumeirah village":                     "jvc",
	"jvc":                                  "jvc",
	"jumeirah village triangle":            "jvt",
	"jvt":                                  "jvt",
	"dubai marina":                         "dubai_marina",
	"marina":                               "dubai_marina",
	"jumeirah lakes towers":                "jlt",
	"jumeirah lake towers":                 "jlt",
	"jlt":                                  "jlt",
	"jumeirah beach residence":             "jbr",
	"jbr":                                  "jbr",
	"downtown dubai":                       "downtown_dubai",
	"downtown":                             "downtown_dubai",
	"burj khalifa district":                "downtown_dubai",
	"business bay":                         "business_bay",
	"palm jumeirah":                        "palm_jumeirah",
	"the palm":                             "palm_jumeirah",
	"dubai hills estate":                   "dubai_hills_estate",
	"dubai hills":                          "dubai_hills_estate",
	"arabian ranches":                      "arabian_ranches",
	"al barsha":                            "al_barsha",
	"barsha":                               "al_barsha",
	"al furjan":                            "al_furjan",
	"arjan":                                "arjan",
	"mirdif":                               "mirdif",
	"mirdiff":                              "mirdif",
	"motor city":                           "motor_city",
	"dubai sports city":                    "dubai_sports_city",
	"sports city":                          "dubai_sports_city",
	"dubai silicon oasis":                  "dubai_silicon_oasis",
	"silicon oasis":                        "dubai_silicon_oasis",
	"dso":                                  "dubai_silicon_oasis",
	"international city":                   "international_city",
	"discovery gardens":                    "discovery_gardens",
	"damac hills":                          "damac_hills",
	"akoya":                                "damac_hills",
	"town square":                          "town_square",
	"nshama town square":                   "town_square",
	"meydan":                               "meydan",
	"dubai creek harbour":                  "dubai_creek_harbour",
	"creek harbour":                        "dubai_creek_harbour",
	"bluewaters":                           "bluewaters",
	"bluewaters island":                    "bluewaters",
	"difc":                                 "difc",
	"dubai international financial centre": "difc",
	"dubai south":                          "dubai_south",
	"jumeirah golf estates":                "jumeirah_golf_estates",
	"mbr city":                             "mbr_city",
	"mohammed bin rashid city":             "mbr_city",
	"dubai investment park":                "dubai_investment_park",
	"dip":                                  "dubai_investment_park",
	"deira":                                "deira",
	"bur dubai":                            "bur_dubai",
	"dubai":                                "dubai",
}

var (
	geoByID = func() map[string]geoEntry {
		m := make(map[string]geoEntry, len(canonicalGeos))
		for _, g := range canonicalGeos {
			m[g.GeoID] = g
		}
		return m
	}()

	// orderedAliases is scanned for containment matches. Longest first so
	// "dubai marina" wins over "dubai"; ties break lexicographically to
	// keep the scan deterministic.
	orderedAliases = func() []string {
		out := make([]string, 0, len(geoAliases))
		for alias := range geoAliases {
			out = append(out, alias)
		}
		sort.Slice(out, func(i, j int) bool {
			if len(out[i]) != len(out[j]) {
				return len(out[i]) > len(out[j])
			}
			return out[i] < out[j]
		})
		return out
	}()

	titleCaser = cases.Title(language.English)
)

// cleanGeoInput lowercases, strips punctuation, and collapses whitespace
func cleanGeoInput(raw string) string {
	lower := strings.ToLower(raw)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// slugGeoID derives a fallback geo id from a cleaned input
func slugGeoID(cleaned string) string {
	return strings.ReplaceAll(cleaned, " ", "_")
}

// NormalizeGeo resolves a raw location string to a canonical geographic
// identity. It never fails: inputs that match no known alias come back
// with a slug id and unknown confidence so the row still lands somewhere
// queryable.
func NormalizeGeo(raw string) models.CanonicalGeo {
	cleaned := cleanGeoInput(raw)
	if cleaned == "" {
		return models.CanonicalGeo{
			GeoType:    models.GeoTypeCommunity,
			GeoID:      "unspecified",
			GeoName:    "Unspecified",
			Confidence: models.ConfidenceUnknown,
		}
	}

	if geoID, ok := geoAliases[cleaned]; ok {
		entry := geoByID[geoID]
		return models.CanonicalGeo{
			GeoType:    entry.GeoType,
			GeoID:      entry.GeoID,
			GeoName:    entry.GeoName,
			Confidence: models.ConfidenceExact,
		}
	}

	padded := " " + cleaned + " "
	for _, alias := range orderedAliases {
		// word-boundary containment so "dip" never matches inside "diplomatic"
		if strings.Contains(padded, " "+alias+" ") {
			entry := geoByID[geoAliases[alias]]
			return models.CanonicalGeo{
				GeoType:    entry.GeoType,
				GeoID:      entry.GeoID,
				GeoName:    entry.GeoName,
				Confidence: models.ConfidenceInferred,
			}
		}
	}

	return models.CanonicalGeo{
		GeoType:    models.GeoTypeCommunity,
		GeoID:      slugGeoID(cleaned),
		GeoName:    titleCaser.String(cleaned),
		Confidence: models.ConfidenceUnknown,
	}
}
