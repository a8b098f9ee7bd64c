package rules

import (
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
)

// Load builds the base catalog: the YAML file at path, or the built-in
// rules when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	return LoadCatalogFile(path)
}

// ApplyOverrides replays stored overrides onto c in the order given.
// A deletion of a metric the catalog lacks is ignored.
func ApplyOverrides(c *Catalog, overrides []*domain.RuleOverride) error {
	for _, o := range overrides {
		if o.Deleted {
			c.RemoveRule(o.MetricName)
			continue
		}
		if o.Rule == nil {
			return fmt.Errorf("%w: override for %s has no rule", ErrInvalidRule, o.MetricName)
		}

		rule := o.Rule.Clone()
		if rule.MetricName == "" {
			rule.MetricName = o.MetricName
		}

		found, err := c.UpdateRule(rule.MetricName, rule)
		if err != nil {
			return fmt.Errorf("override %s: %w", o.MetricName, err)
		}
		if found {
			continue
		}
		if err := c.AddRule(o.Group, rule); err != nil {
			return fmt.Errorf("override %s: %w", o.MetricName, err)
		}
	}
	return nil
}
