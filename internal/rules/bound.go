package rules

import "github.com/opensource-finance/heron/internal/domain"

// dynamicRange evaluates a dynamic bound function. The validated value is
// accepted for signature parity but none of the functions depend on it.
func dynamicRange(d domain.DynamicBound, _ float64) (lo, hi *float64) {
	switch d {
	case domain.GrowthRateFloor:
		return domain.Float(-1), nil
	case domain.UnitInterval:
		return domain.Float(0), domain.Float(1)
	case domain.WeekdayRange:
		return domain.Float(0), domain.Float(6)
	case domain.PercentRange:
		return domain.Float(0), domain.Float(100)
	case domain.NonPositive:
		return nil, domain.Float(0)
	default:
		return nil, nil
	}
}

// resolveBounds turns a rule's declared bounds into concrete limits for value.
// A dynamic min keeps only the lower element of its function's pair and a
// dynamic max keeps only the upper element.
func resolveBounds(rule *domain.MetricRule, value float64) domain.Range {
	var r domain.Range

	switch rule.MinValue.Kind {
	case domain.BoundFixed:
		r.Min = domain.Float(rule.MinValue.Value)
	case domain.BoundDynamic:
		r.Min, _ = dynamicRange(rule.MinValue.Dynamic, value)
	}

	switch rule.MaxValue.Kind {
	case domain.BoundFixed:
		r.Max = domain.Float(rule.MaxValue.Value)
	case domain.BoundDynamic:
		_, r.Max = dynamicRange(rule.MaxValue.Dynamic, value)
	}

	return r
}
