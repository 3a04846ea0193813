package pkpass

import (
	"fmt"
	"strings"
	"time"

	"github.com/walletpass/passconv/passerr"
)

// SubtypeTag identifies a pass subtype.
type SubtypeTag int

const (
	// SubtypeFlight is an air boarding pass.
	SubtypeFlight SubtypeTag = iota + 1
)

func (t SubtypeTag) String() string {
	switch t {
	case SubtypeFlight:
		return "flight"
	default:
		return fmt.Sprintf("subtype(%d)", int(t))
	}
}

// Subtype is the domain-specific part of a pass.
type Subtype interface {
	Tag() SubtypeTag
}

// Params carries the caller-supplied context every extractor receives.
type Params struct {
	// Year disambiguates dates that carry only day and month.
	Year int
	// Location is the fixed zone partial times are interpreted in.
	Location *time.Location
}

// Probe reports whether a manifest carries a subtype signature and returns
// the top-level key of the matched sub-object.
type Probe func(manifest map[string]interface{}) (key string, ok bool)

// ExtractFunc builds a subtype from the full manifest and the matched
// sub-object.
type ExtractFunc func(manifest map[string]interface{}, sub interface{}, p Params) (Subtype, error)

// Registration pairs a subtype's signature probe with its extractor.
type Registration struct {
	Tag     SubtypeTag
	Probe   Probe
	Extract ExtractFunc
}

// Registry holds subtype registrations and tests them in registration order.
type Registry struct {
	entries []Registration
}

// NewRegistry returns a registry holding the given registrations.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{}
	for _, reg := range regs {
		r.Register(reg)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in subtype.
func DefaultRegistry() *Registry {
	return NewRegistry(flightRegistration)
}

// Register appends a registration.
func (r *Registry) Register(reg Registration) {
	r.entries = append(r.entries, reg)
}

// Tags returns the registered tags in probe order.
func (r *Registry) Tags() []SubtypeTag {
	tags := make([]SubtypeTag, len(r.entries))
	for i, e := range r.entries {
		tags[i] = e.Tag
	}
	return tags
}

type match struct {
	reg Registration
	key string
}

// Detect runs every probe and returns the single matching registration and
// the key of its sub-object. Zero or several matches are errors.
func (r *Registry) Detect(manifest map[string]interface{}) (Registration, string, error) {
	var found []match
	for _, reg := range r.entries {
		key, ok := reg.Probe(manifest)
		if !ok {
			continue
		}
		if _, ok := manifest[key]; !ok {
			continue
		}
		found = append(found, match{reg: reg, key: key})
	}

	switch len(found) {
	case 0:
		return Registration{}, "", passerr.Newf(passerr.NoSubtypeErr, "manifest matches none of %v", r.Tags())
	case 1:
		return found[0].reg, found[0].key, nil
	default:
		names := make([]string, len(found))
		for i, m := range found {
			names[i] = m.reg.Tag.String()
		}
		return Registration{}, "", passerr.Newf(passerr.AmbiguousSubtypeErr, "manifest matches %s", strings.Join(names, ", "))
	}
}

// Extract detects the subtype of the manifest and runs its extractor.
func (r *Registry) Extract(manifest interface{}, p Params) (Subtype, error) {
	obj, err := requireObject(manifest, "manifest")
	if err != nil {
		return nil, err
	}

	reg, key, err := r.Detect(obj)
	if err != nil {
		return nil, err
	}
	return reg.Extract(obj, obj[key], p)
}

// SignatureProbe matches manifests whose key holds an object in which
// discriminator equals expected.
func SignatureProbe(key, discriminator, expected string) Probe {
	return func(manifest map[string]interface{}) (string, bool) {
		sub, ok := manifest[key].(map[string]interface{})
		if !ok {
			return "", false
		}
		if v, ok := sub[discriminator].(string); !ok || v != expected {
			return "", false
		}
		return key, true
	}
}
