package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBound is returned when a bound cannot be decoded.
var ErrInvalidBound = errors.New("invalid bound")

// BoundKind tags the representation held by a Bound.
type BoundKind string

const (
	BoundUnbounded BoundKind = "unbounded"
	BoundFixed     BoundKind = "fixed"
	BoundDynamic   BoundKind = "dynamic"
)

// DynamicBound names a range function evaluated against the validated value.
// Every function returns a (min, max) pair; a rule keeps only the side it is
// declared on.
type DynamicBound string

const (
	// GrowthRateFloor yields (-1, none).
	GrowthRateFloor DynamicBound = "growth_rate_floor"
	// UnboundedBoth yields (none, none).
	UnboundedBoth DynamicBound = "unbounded_both"
	// UnitInterval yields (0, 1).
	UnitInterval DynamicBound = "unit_interval"
	// WeekdayRange yields (0, 6).
	WeekdayRange DynamicBound = "weekday_range"
	// PercentRange yields (0, 100).
	PercentRange DynamicBound = "percent_range"
	// NonPositive yields (none, 0).
	NonPositive DynamicBound = "non_positive"
)

var dynamicBounds = map[DynamicBound]bool{
	GrowthRateFloor: true,
	UnboundedBoth:   true,
	UnitInterval:    true,
	WeekdayRange:    true,
	PercentRange:    true,
	NonPositive:     true,
}

// ParseDynamicBound validates a dynamic bound name.
func ParseDynamicBound(s string) (DynamicBound, error) {
	d := DynamicBound(s)
	if !dynamicBounds[d] {
		return "", fmt.Errorf("%w: unknown dynamic bound %q", ErrInvalidBound, s)
	}
	return d, nil
}

// Bound is one side of a rule's range: unbounded, a literal, or a dynamic function.
type Bound struct {
	Kind    BoundKind
	Value   float64
	Dynamic DynamicBound
}

// Unbounded returns a bound that never constrains.
func Unbounded() Bound { return Bound{Kind: BoundUnbounded} }

// Fixed returns a literal bound.
func Fixed(v float64) Bound { return Bound{Kind: BoundFixed, Value: v} }

// Dynamic returns a bound resolved per evaluation.
func Dynamic(d DynamicBound) Bound { return Bound{Kind: BoundDynamic, Dynamic: d} }

// IsUnbounded reports whether the bound is empty. The zero Bound is unbounded.
func (b Bound) IsUnbounded() bool {
	return b.Kind == "" || b.Kind == BoundUnbounded
}

func (b Bound) String() string {
	switch b.Kind {
	case BoundFixed:
		return FormatFloat(b.Value)
	case BoundDynamic:
		return "dynamic(" + string(b.Dynamic) + ")"
	default:
		return "unbounded"
	}
}

// MarshalJSON encodes a bound as a number, null, or {"dynamic": name}.
func (b Bound) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BoundFixed:
		return json.Marshal(b.Value)
	case BoundDynamic:
		return json.Marshal(map[string]string{"dynamic": string(b.Dynamic)})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts the forms produced by MarshalJSON.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBound, err)
	}
	parsed, err := BoundFromAny(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalYAML encodes a bound the same way as MarshalJSON.
func (b Bound) MarshalYAML() (any, error) {
	switch b.Kind {
	case BoundFixed:
		return b.Value, nil
	case BoundDynamic:
		return map[string]string{"dynamic": string(b.Dynamic)}, nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (b *Bound) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBound, err)
	}
	parsed, err := BoundFromAny(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// BoundFromAny converts a decoded JSON/YAML value into a Bound.
func BoundFromAny(raw any) (Bound, error) {
	switch v := raw.(type) {
	case nil:
		return Unbounded(), nil
	case float64:
		return Fixed(v), nil
	case float32:
		return Fixed(float64(v)), nil
	case int:
		return Fixed(float64(v)), nil
	case int64:
		return Fixed(float64(v)), nil
	case uint64:
		return Fixed(float64(v)), nil
	case map[string]any:
		name, ok := v["dynamic"].(string)
		if !ok {
			return Bound{}, fmt.Errorf("%w: expected {dynamic: <name>}", ErrInvalidBound)
		}
		d, err := ParseDynamicBound(name)
		if err != nil {
			return Bound{}, err
		}
		return Dynamic(d), nil
	case map[any]any:
		conv := make(map[string]any, len(v))
		for k, val := range v {
			conv[fmt.Sprint(k)] = val
		}
		return BoundFromAny(conv)
	default:
		return Bound{}, fmt.Errorf("%w: unsupported value %v (%T)", ErrInvalidBound, raw, raw)
	}
}

// Range is a resolved (min, max) pair. A nil side is unbounded.
type Range struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Contains reports whether v lies inside the inclusive range.
func (r Range) Contains(v float64) bool {
	return (r.Min == nil || v >= *r.Min) && (r.Max == nil || v <= *r.Max)
}

func (r Range) String() string {
	return FormatBound(r.Min) + " to " + FormatBound(r.Max)
}

// FormatBound renders a resolved bound, "unbounded" when nil.
func FormatBound(v *float64) string {
	if v == nil {
		return "unbounded"
	}
	return FormatFloat(*v)
}

// FormatFloat renders whole numbers without a fractional part.
func FormatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
