package ingestion

import (
	"strconv"
	"strings"
)

// Unknown is returned for every segment value that has no canonical mapping.
const Unknown = "unknown"

const (
	DeviceMobile      = "mobile"
	DeviceDesktop     = "desktop"
	DeviceTablet      = "tablet"
	DeviceConnectedTV = "connected_tv"

	GenderMale         = "male"
	GenderFemale       = "female"
	GenderUndetermined = "undetermined"
)

var ageBuckets = map[string]struct{}{
	"18-24": {}, "25-34": {}, "35-44": {}, "45-54": {}, "55-64": {}, "65+": {}, "undetermined": {},
}

var googleDevices = map[string]string{
	"MOBILE":       DeviceMobile,
	"DESKTOP":      DeviceDesktop,
	"TABLET":       DeviceTablet,
	"CONNECTED_TV": DeviceConnectedTV,
}

var googleAgeRanges = map[string]string{
	"AGE_RANGE_18_24":        "18-24",
	"AGE_RANGE_25_34":        "25-34",
	"AGE_RANGE_35_44":        "35-44",
	"AGE_RANGE_45_54":        "45-54",
	"AGE_RANGE_55_64":        "55-64",
	"AGE_RANGE_65_UP":        "65+",
	"AGE_RANGE_UNDETERMINED": "undetermined",
}

var googleGenders = map[string]string{
	"MALE":         GenderMale,
	"FEMALE":       GenderFemale,
	"UNDETERMINED": GenderUndetermined,
}

var metaDevices = map[string]string{
	"mobile":       DeviceMobile,
	"mobile_app":   DeviceMobile,
	"mobile_web":   DeviceMobile,
	"desktop":      DeviceDesktop,
	"tablet":       DeviceTablet,
	"connected_tv": DeviceConnectedTV,
	"tv":           DeviceConnectedTV,
}

// GoogleDevice maps a Google Ads DeviceEnum name.
func GoogleDevice(v string) string {
	return lookup(googleDevices, strings.ToUpper(strings.TrimSpace(v)))
}

// GoogleCountry extracts the ISO code from values like "countries/US" or
// "geoTargetConstants/2276". Country criterion ids are 2000 plus the ISO 3166-1 numeric code.
func GoogleCountry(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.LastIndex(v, "/"); i >= 0 {
		v = v[i+1:]
	}
	if id, err := strconv.Atoi(v); err == nil {
		return lookup(isoNumeric, strconv.Itoa(id-2000))
	}
	return isoCountry(v)
}

func GoogleAgeRange(v string) string {
	return lookup(googleAgeRanges, strings.ToUpper(strings.TrimSpace(v)))
}

func GoogleGender(v string) string {
	return lookup(googleGenders, strings.ToUpper(strings.TrimSpace(v)))
}

// MetaDevice maps the device_platform breakdown of the insights API.
func MetaDevice(v string) string {
	return lookup(metaDevices, strings.ToLower(strings.TrimSpace(v)))
}

func MetaCountry(v string) string {
	return isoCountry(strings.TrimSpace(v))
}

func MetaAgeRange(v string) string {
	v = strings.TrimSpace(v)
	if _, ok := ageBuckets[v]; ok {
		return v
	}
	if strings.EqualFold(v, "unknown") {
		return "undetermined"
	}
	return Unknown
}

// MetaGender only distinguishes male and female; Meta reports everything else as "unknown".
func MetaGender(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	}
	return Unknown
}

func lookup(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return Unknown
}

func isoCountry(v string) string {
	if len(v) != 2 {
		return Unknown
	}
	for _, r := range v {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return Unknown
		}
	}
	return strings.ToUpper(v)
}

// isoNumeric maps ISO 3166-1 numeric codes to alpha-2 for the markets ads are commonly run in.
var isoNumeric = map[string]string{
	"32": "AR", "36": "AU", "40": "AT", "56": "BE", "76": "BR", "100": "BG", "124": "CA",
	"152": "CL", "156": "CN", "170": "CO", "191": "HR", "203": "CZ", "208": "DK", "818": "EG",
	"246": "FI", "250": "FR", "276": "DE", "300": "GR", "344": "HK", "348": "HU", "356": "IN",
	"360": "ID", "372": "IE", "376": "IL", "380": "IT", "392": "JP", "404": "KE", "410": "KR",
	"442": "LU", "458": "MY", "484": "MX", "504": "MA", "528": "NL", "554": "NZ", "566": "NG",
	"578": "NO", "586": "PK", "604": "PE", "608": "PH", "616": "PL", "620": "PT", "642": "RO",
	"643": "RU", "682": "SA", "688": "RS", "702": "SG", "703": "SK", "705": "SI", "710": "ZA",
	"724": "ES", "752": "SE", "756": "CH", "158": "TW", "764": "TH", "792": "TR", "804": "UA",
	"784": "AE", "826": "GB", "840": "US", "704": "VN",
}
