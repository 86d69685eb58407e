package ingestion

import "testing"

func TestNormalizers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{name: "google mobile", fn: GoogleDevice, in: "MOBILE", want: DeviceMobile},
		{name: "google tv", fn: GoogleDevice, in: "connected_tv", want: DeviceConnectedTV},
		{name: "google other device", fn: GoogleDevice, in: "OTHER", want: Unknown},
		{name: "google country resource", fn: GoogleCountry, in: "geoTargetConstants/US", want: "US"},
		{name: "google country plain", fn: GoogleCountry, in: "de", want: "DE"},
		{name: "google country criterion", fn: GoogleCountry, in: "geoTargetConstants/2276", want: "DE"},
		{name: "google country bare criterion", fn: GoogleCountry, in: "2840", want: "US"},
		{name: "google country unmapped criterion", fn: GoogleCountry, in: "geoTargetConstants/1023191", want: Unknown},
		{name: "google age", fn: GoogleAgeRange, in: "AGE_RANGE_65_UP", want: "65+"},
		{name: "google age undetermined", fn: GoogleAgeRange, in: "AGE_RANGE_UNDETERMINED", want: "undetermined"},
		{name: "google age empty", fn: GoogleAgeRange, in: "", want: Unknown},
		{name: "google gender", fn: GoogleGender, in: "FEMALE", want: GenderFemale},
		{name: "google gender undetermined", fn: GoogleGender, in: "UNDETERMINED", want: GenderUndetermined},
		{name: "meta mobile app", fn: MetaDevice, in: "mobile_app", want: DeviceMobile},
		{name: "meta mobile web", fn: MetaDevice, in: "mobile_web", want: DeviceMobile},
		{name: "meta desktop", fn: MetaDevice, in: "desktop", want: DeviceDesktop},
		{name: "meta unknown device", fn: MetaDevice, in: "watch", want: Unknown},
		{name: "meta country", fn: MetaCountry, in: "fr", want: "FR"},
		{name: "meta country unknown", fn: MetaCountry, in: "unknown", want: Unknown},
		{name: "meta age", fn: MetaAgeRange, in: "25-34", want: "25-34"},
		{name: "meta age unknown", fn: MetaAgeRange, in: "Unknown", want: "undetermined"},
		{name: "meta age bogus", fn: MetaAgeRange, in: "13-17", want: Unknown},
		{name: "meta gender", fn: MetaGender, in: "Male", want: GenderMale},
		{name: "meta gender unknown", fn: MetaGender, in: "unknown", want: Unknown},
	}

	for _, tt := range tests {
		if got := tt.fn(tt.in); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}
