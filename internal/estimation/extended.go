package estimation

import "encoding/json"

// ExtendedAttributes carries UI-specific breakdowns that are not modeled
// relationally. Known keys are typed; unknown keys are preserved verbatim so
// they round-trip through create/update/read.
type ExtendedAttributes struct {
	FabricationSplit   map[string]float64
	PurchaseCategories map[string]float64
	Extra              map[string]json.RawMessage
}

const (
	keyFabricationSplit   = "fabrication_split"
	keyPurchaseCategories = "purchase_categories"
)

// IsEmpty reports whether the bag carries any data.
func (e *ExtendedAttributes) IsEmpty() bool {
	return e == nil || (len(e.FabricationSplit) == 0 && len(e.PurchaseCategories) == 0 && len(e.Extra) == 0)
}

// MarshalJSON flattens known and preserved keys into one object.
func (e ExtendedAttributes) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extra)+2)
	for k, v := range e.Extra {
		out[k] = v
	}
	if len(e.FabricationSplit) > 0 {
		raw, err := json.Marshal(e.FabricationSplit)
		if err != nil {
			return nil, err
		}
		out[keyFabricationSplit] = raw
	}
	if len(e.PurchaseCategories) > 0 {
		raw, err := json.Marshal(e.PurchaseCategories)
		if err != nil {
			return nil, err
		}
		out[keyPurchaseCategories] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known keys out and keeps the remainder untouched.
func (e *ExtendedAttributes) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	if raw, ok := all[keyFabricationSplit]; ok {
		if err := json.Unmarshal(raw, &e.FabricationSplit); err != nil {
			return err
		}
		delete(all, keyFabricationSplit)
	}
	if raw, ok := all[keyPurchaseCategories]; ok {
		if err := json.Unmarshal(raw, &e.PurchaseCategories); err != nil {
			return err
		}
		delete(all, keyPurchaseCategories)
	}
	if len(all) > 0 {
		e.Extra = all
	} else {
		e.Extra = nil
	}
	return nil
}
