package knowledge

import "testing"

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Crop: " Pšenica ", Chemical: "GLIFOSAT", Language: "HR", CountryCode: "hr"}.Normalize()

	if f.Crop != "pšenica" {
		t.Errorf("Crop = %q", f.Crop)
	}
	if f.Chemical != "glifosat" {
		t.Errorf("Chemical = %q", f.Chemical)
	}
	if f.Language != "hr" {
		t.Errorf("Language = %q", f.Language)
	}
	if f.CountryCode != "HR" {
		t.Errorf("CountryCode = %q", f.CountryCode)
	}
}

func TestFilter_Validate(t *testing.T) {
	neg := -2.0
	cases := []struct {
		name    string
		f       Filter
		wantErr bool
	}{
		{"empty", Filter{}, false},
		{"valid enums", Filter{Type: TypePesticide, ProtectionType: ProtectionFungicide, Relevance: RelevanceCountry}, false},
		{"bad type", Filter{Type: "novel"}, true},
		{"bad protection", Filter{ProtectionType: "nematicide"}, true},
		{"bad relevance", Filter{Relevance: "planetary"}, true},
		{"negative phi", Filter{MaxPHIDays: &neg}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.f.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	if !(Filter{}).IsEmpty() {
		t.Error("zero filter should be empty")
	}
	if (Filter{Crop: "kukuruz"}).IsEmpty() {
		t.Error("filter with crop should not be empty")
	}
}
