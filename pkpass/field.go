package pkpass

// FieldEntry is one key/label/value triple of a field group.
type FieldEntry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// FieldGroup is an ordered sequence of entries. Order is display order; it
// only matters for lookups when a key appears more than once, in which case
// the first occurrence wins.
type FieldGroup []FieldEntry

// Lookup returns the value of the first entry with the given key.
func (g FieldGroup) Lookup(key string) (string, bool) {
	e, ok := g.Entry(key)
	return e.Value, ok
}

// Entry returns the first entry with the given key.
func (g FieldGroup) Entry(key string) (FieldEntry, bool) {
	for _, e := range g {
		if e.Key == key {
			return e, true
		}
	}
	return FieldEntry{}, false
}

// Keys returns the entry keys in order, duplicates included.
func (g FieldGroup) Keys() []string {
	keys := make([]string, len(g))
	for i, e := range g {
		keys[i] = e.Key
	}
	return keys
}

func (g FieldGroup) clone() FieldGroup {
	if g == nil {
		return nil
	}
	out := make(FieldGroup, len(g))
	copy(out, g)
	return out
}

// GroupKind names one of the five field groups of a pass face.
type GroupKind int

const (
	GroupHeader GroupKind = iota
	GroupPrimary
	GroupSecondary
	GroupAuxiliary
	GroupBack
)

// GroupKinds lists all group kinds in display order.
var GroupKinds = []GroupKind{GroupHeader, GroupPrimary, GroupSecondary, GroupAuxiliary, GroupBack}

// JSONKey returns the manifest key holding the group.
func (k GroupKind) JSONKey() string {
	switch k {
	case GroupHeader:
		return "headerFields"
	case GroupPrimary:
		return "primaryFields"
	case GroupSecondary:
		return "secondaryFields"
	case GroupAuxiliary:
		return "auxiliaryFields"
	case GroupBack:
		return "backFields"
	default:
		return ""
	}
}

func (k GroupKind) String() string {
	switch k {
	case GroupHeader:
		return "header"
	case GroupPrimary:
		return "primary"
	case GroupSecondary:
		return "secondary"
	case GroupAuxiliary:
		return "auxiliary"
	case GroupBack:
		return "back"
	default:
		return "unknown"
	}
}
