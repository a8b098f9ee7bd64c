// Package rules provides the metric rule catalog and the validator that applies it.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opensource-finance/heron/internal/domain"
)

var (
	// ErrDuplicateMetric is returned when a metric name is already in the catalog.
	ErrDuplicateMetric = errors.New("duplicate metric")
	// ErrInvalidRule is returned for rules that cannot be evaluated.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrInvalidExpression is returned when a custom expression fails to compile.
	ErrInvalidExpression = errors.New("invalid custom expression")
)

// compiledRule is a catalog entry ready for evaluation.
type compiledRule struct {
	rule      *domain.MetricRule
	group     string
	predicate *predicate
}

type catalogGroup struct {
	name  string
	rules []*compiledRule
}

// snapshot is an immutable view of the catalog.
type snapshot struct {
	groups []*catalogGroup
	index  map[string]*compiledRule
}

// Catalog holds metric rules organized into named groups.
// Lookups are safe for concurrent use. Mutations rebuild the catalog and swap it in.
type Catalog struct {
	mu   sync.RWMutex
	snap *snapshot
}

// NewCatalog builds a catalog from groups. Group order and rule order are kept.
func NewCatalog(groups []domain.RuleGroup) (*Catalog, error) {
	snap := &snapshot{index: make(map[string]*compiledRule)}
	for _, g := range groups {
		for _, r := range g.Rules {
			if err := snap.add(g.Name, r); err != nil {
				return nil, err
			}
		}
		// Keep empty groups so they are still listed.
		snap.group(g.Name)
	}
	return &Catalog{snap: snap}, nil
}

// RuleForMetric returns a copy of the rule for metric, if any.
func (c *Catalog) RuleForMetric(metric string) (*domain.MetricRule, bool) {
	cr := c.lookup(metric)
	if cr == nil {
		return nil, false
	}
	return cr.rule.Clone(), true
}

// GroupForMetric returns the group holding metric.
func (c *Catalog) GroupForMetric(metric string) (string, bool) {
	cr := c.lookup(metric)
	if cr == nil {
		return "", false
	}
	return cr.group, true
}

// RulesForGroup returns copies of a group's rules in insertion order.
// Unknown groups yield an empty slice.
func (c *Catalog) RulesForGroup(group string) []*domain.MetricRule {
	snap := c.current()
	for _, g := range snap.groups {
		if g.name == group {
			out := make([]*domain.MetricRule, 0, len(g.rules))
			for _, cr := range g.rules {
				out = append(out, cr.rule.Clone())
			}
			return out
		}
	}
	return []*domain.MetricRule{}
}

// AddRule appends rule to group, creating the group if needed.
func (c *Catalog) AddRule(group string, rule *domain.MetricRule) error {
	if strings.TrimSpace(group) == "" {
		return fmt.Errorf("%w: group is required", ErrInvalidRule)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snap.clone()
	if err := next.add(group, rule); err != nil {
		return err
	}
	c.snap = next
	return nil
}

// UpdateRule replaces the rule named metric in place.
// It returns false, leaving the catalog untouched, when no such rule exists.
func (c *Catalog) UpdateRule(metric string, rule *domain.MetricRule) (bool, error) {
	if rule == nil {
		return false, fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.snap.index[metric]
	if !ok {
		return false, nil
	}

	replacement := rule.Clone()
	if replacement.MetricName == "" {
		replacement.MetricName = metric
	}
	if replacement.MetricName != metric {
		if _, taken := c.snap.index[replacement.MetricName]; taken {
			return false, fmt.Errorf("%w: %s", ErrDuplicateMetric, replacement.MetricName)
		}
	}

	compiled, err := compile(existing.group, replacement)
	if err != nil {
		return false, err
	}

	next := c.snap.clone()
	for _, g := range next.groups {
		if g.name != existing.group {
			continue
		}
		for i, cr := range g.rules {
			if cr.rule.MetricName == metric {
				g.rules[i] = compiled
			}
		}
	}
	delete(next.index, metric)
	next.index[compiled.rule.MetricName] = compiled
	c.snap = next
	return true, nil
}

// RemoveRule deletes the rule named metric. It returns false when not found.
// The emptied group is kept.
func (c *Catalog) RemoveRule(metric string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.snap.index[metric]
	if !ok {
		return false
	}

	next := c.snap.clone()
	for _, g := range next.groups {
		if g.name != existing.group {
			continue
		}
		kept := g.rules[:0]
		for _, cr := range g.rules {
			if cr.rule.MetricName != metric {
				kept = append(kept, cr)
			}
		}
		g.rules = kept
	}
	delete(next.index, metric)
	c.snap = next
	return true
}

// Groups returns group names in insertion order.
func (c *Catalog) Groups() []string {
	snap := c.current()
	out := make([]string, 0, len(snap.groups))
	for _, g := range snap.groups {
		out = append(out, g.name)
	}
	return out
}

// MetricNames returns every metric name, sorted.
func (c *Catalog) MetricNames() []string {
	snap := c.current()
	out := make([]string, 0, len(snap.index))
	for name := range snap.index {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy of the catalog as rule groups.
func (c *Catalog) Snapshot() []domain.RuleGroup {
	snap := c.current()
	out := make([]domain.RuleGroup, 0, len(snap.groups))
	for _, g := range snap.groups {
		rg := domain.RuleGroup{Name: g.name, Rules: make([]*domain.MetricRule, 0, len(g.rules))}
		for _, cr := range g.rules {
			rg.Rules = append(rg.Rules, cr.rule.Clone())
		}
		out = append(out, rg)
	}
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	return len(c.current().index)
}

// Replace swaps in the contents of other. Used to reload the catalog.
func (c *Catalog) Replace(other *Catalog) {
	snap := other.current()
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

func (c *Catalog) current() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Catalog) lookup(metric string) *compiledRule {
	return c.current().index[metric]
}

// clone copies the group structure. Compiled rules are shared; they are never mutated.
func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		groups: make([]*catalogGroup, 0, len(s.groups)),
		index:  make(map[string]*compiledRule, len(s.index)),
	}
	for _, g := range s.groups {
		next.groups = append(next.groups, &catalogGroup{
			name:  g.name,
			rules: append([]*compiledRule(nil), g.rules...),
		})
	}
	for k, v := range s.index {
		next.index[k] = v
	}
	return next
}

func (s *snapshot) group(name string) *catalogGroup {
	for _, g := range s.groups {
		if g.name == name {
			return g
		}
	}
	g := &catalogGroup{name: name}
	s.groups = append(s.groups, g)
	return g
}

func (s *snapshot) add(group string, rule *domain.MetricRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}
	if _, taken := s.index[rule.MetricName]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, rule.MetricName)
	}
	compiled, err := compile(group, rule.Clone())
	if err != nil {
		return err
	}
	g := s.group(group)
	g.rules = append(g.rules, compiled)
	s.index[compiled.rule.MetricName] = compiled
	return nil
}

// compile normalizes and checks a rule and compiles its custom expression.
func compile(group string, rule *domain.MetricRule) (*compiledRule, error) {
	if strings.TrimSpace(rule.MetricName) == "" {
		return nil, fmt.Errorf("%w: metric name is required", ErrInvalidRule)
	}

	vt, err := domain.ParseValidationType(string(rule.ValidationType))
	if err != nil {
		return nil, fmt.Errorf("metric %s: %w", rule.MetricName, err)
	}
	rule.ValidationType = vt

	for _, b := range []domain.Bound{rule.MinValue, rule.MaxValue} {
		if err := checkBound(b); err != nil {
			return nil, fmt.Errorf("metric %s: %w", rule.MetricName, err)
		}
	}

	cr := &compiledRule{rule: rule, group: group}
	if strings.TrimSpace(rule.CustomExpression) != "" {
		p, err := compilePredicate(rule.MetricName, rule.CustomExpression)
		if err != nil {
			return nil, err
		}
		cr.predicate = p
	}
	return cr, nil
}

func checkBound(b domain.Bound) error {
	switch b.Kind {
	case "", domain.BoundUnbounded, domain.BoundFixed:
		return nil
	case domain.BoundDynamic:
		_, err := domain.ParseDynamicBound(string(b.Dynamic))
		return err
	default:
		return fmt.Errorf("%w: unknown bound kind %q", domain.ErrInvalidBound, b.Kind)
	}
}
