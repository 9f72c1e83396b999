package knowledge

import (
	"fmt"
	"strings"
)

// Filter restricts a search to documents matching the given metadata.
// Zero values mean no constraint on that field.
type Filter struct {
	Type           DocType
	Crop           string
	Chemical       string
	Language       string
	CountryCode    string
	ProtectionType ProtectionType
	MaxPHIDays     *float64
	Relevance      Relevance
}

// Normalize lowercases crop and chemical and uppercases the country code,
// matching the stored document form.
func (f Filter) Normalize() Filter {
	f.Crop = strings.ToLower(strings.TrimSpace(f.Crop))
	f.Chemical = strings.ToLower(strings.TrimSpace(f.Chemical))
	f.Language = strings.ToLower(strings.TrimSpace(f.Language))
	f.CountryCode = strings.ToUpper(strings.TrimSpace(f.CountryCode))
	return f
}

// Validate checks enum fields against their supported values.
func (f Filter) Validate() error {
	if f.Type != "" && !f.Type.IsValid() {
		return fmt.Errorf("invalid document type: %q", f.Type)
	}
	if f.ProtectionType != "" && !f.ProtectionType.IsValid() {
		return fmt.Errorf("invalid protection type: %q", f.ProtectionType)
	}
	if f.Relevance != "" && !f.Relevance.IsValid() {
		return fmt.Errorf("invalid relevance tier: %q", f.Relevance)
	}
	if f.MaxPHIDays != nil && *f.MaxPHIDays < 0 {
		return fmt.Errorf("max_phi_days must not be negative")
	}
	return nil
}

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return f.Type == "" && f.Crop == "" && f.Chemical == "" && f.Language == "" &&
		f.CountryCode == "" && f.ProtectionType == "" && f.MaxPHIDays == nil && f.Relevance == ""
}
