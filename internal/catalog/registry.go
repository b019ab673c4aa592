package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
)

// Visibility controls when a product is hidden from listings.
type Visibility string

// Visibility values. In the registry document HiddenAlways is written as
// the boolean true.
const (
	Visible       Visibility = ""
	HiddenAlways  Visibility = "always"
	HiddenWhenOOS Visibility = "when_oos"
)

// UnmarshalJSON accepts true, false or "when_oos".
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*v = HiddenAlways
		} else {
			*v = Visible
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hidden must be a boolean or %q: %w", HiddenWhenOOS, err)
	}
	switch Visibility(s) {
	case HiddenWhenOOS, HiddenAlways, Visible:
		*v = Visibility(s)
		return nil
	default:
		return fmt.Errorf("unknown hidden value %q", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Visibility) MarshalJSON() ([]byte, error) {
	switch v {
	case HiddenAlways:
		return []byte("true"), nil
	case Visible:
		return []byte("false"), nil
	default:
		return json.Marshal(string(v))
	}
}

// Entry is one manual override in the registry.
type Entry struct {
	Category string     `json:"category,omitempty"`
	Name     string     `json:"name,omitempty"`
	SMSName  string     `json:"sms_name,omitempty"`
	NoExpand bool       `json:"no_expand,omitempty"`
	Hidden   Visibility `json:"hidden,omitempty"`
}

// Registry is the products.json document, keyed by product key.
type Registry map[string]Entry

// NewRegistryStore opens the registry document at path.
func NewRegistryStore(path string, opts ...jsonstore.Option) *jsonstore.Store[Registry] {
	return jsonstore.New(path, func() Registry { return Registry{} }, opts...)
}
