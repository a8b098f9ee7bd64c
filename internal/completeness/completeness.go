// Package completeness reports which (metric, time range) observations each
// company is missing relative to everything observed in the same batch.
package completeness

import (
	"sort"

	"github.com/opensource-finance/heron/internal/domain"
)

// topMissing is how many keys MostFrequentlyMissing reports.
const topMissing = 10

// Observations collects the keys observed per company.
// Companies and keys keep first-seen order; repeated keys collapse.
type Observations struct {
	companies []string
	keys      map[string][]domain.ObservationKey
	seen      map[string]map[domain.ObservationKey]struct{}

	universe   []domain.ObservationKey
	inUniverse map[domain.ObservationKey]struct{}
}

// NewObservations returns an empty collection.
func NewObservations() *Observations {
	return &Observations{
		keys:       make(map[string][]domain.ObservationKey),
		seen:       make(map[string]map[domain.ObservationKey]struct{}),
		inUniverse: make(map[domain.ObservationKey]struct{}),
	}
}

// FromRows builds observations from long-format rows.
func FromRows(rows []domain.MetricRow) *Observations {
	obs := NewObservations()
	for _, row := range rows {
		obs.AddRow(row)
	}
	return obs
}

// Add records that company reported metric over timeRange.
// An empty timeRange is recorded as domain.DefaultTimeRange.
func (o *Observations) Add(company, metric, timeRange string) {
	key := domain.NewObservationKey(metric, timeRange)

	set, ok := o.seen[company]
	if !ok {
		set = make(map[domain.ObservationKey]struct{})
		o.seen[company] = set
		o.companies = append(o.companies, company)
	}
	if _, dup := set[key]; dup {
		return
	}
	set[key] = struct{}{}
	o.keys[company] = append(o.keys[company], key)

	if _, ok := o.inUniverse[key]; !ok {
		o.inUniverse[key] = struct{}{}
		o.universe = append(o.universe, key)
	}
}

// AddRow records a row. The value is irrelevant; a null value still counts as observed.
func (o *Observations) AddRow(row domain.MetricRow) {
	o.Add(row.CompanyID, row.MetricName, row.TimeRange)
}

// Companies returns company identifiers in first-seen order.
func (o *Observations) Companies() []string {
	return append([]string(nil), o.companies...)
}

// Keys returns the keys observed for company in first-seen order.
func (o *Observations) Keys(company string) []domain.ObservationKey {
	return append([]domain.ObservationKey(nil), o.keys[company]...)
}

// Universe returns every key observed across all companies in first-seen order.
func (o *Observations) Universe() []domain.ObservationKey {
	return append([]domain.ObservationKey(nil), o.universe...)
}

// CompanyResult is the completeness record of one company.
type CompanyResult struct {
	CompanyID          string                  `json:"companyId"`
	HasAll             bool                    `json:"hasAll"`
	MissingCount       int                     `json:"missingCount"`
	Missing            []domain.ObservationKey `json:"missing"`
	MissingByMetric    map[string][]string     `json:"missingByMetric"`
	ObservedKeys       int                     `json:"observedKeys"`
	DistinctMetrics    int                     `json:"distinctMetrics"`
	CoveragePercentage float64                 `json:"coveragePercentage"`
}

// Report is the outcome of Check.
type Report struct {
	Universe  []domain.ObservationKey    `json:"universe"`
	Companies []CompanyResult            `json:"companies"`
	Summary   domain.CompletenessSummary `json:"summary"`

	index map[string]int
}

// Company returns the record for id.
func (r *Report) Company(id string) (CompanyResult, bool) {
	i, ok := r.index[id]
	if !ok {
		return CompanyResult{}, false
	}
	return r.Companies[i], true
}

// Check computes per-company completeness against the batch universe.
func Check(obs *Observations) *Report {
	report := &Report{
		Universe:  obs.Universe(),
		Companies: make([]CompanyResult, 0, len(obs.companies)),
		index:     make(map[string]int, len(obs.companies)),
	}

	missingCounts := make(map[domain.ObservationKey]int)

	for _, company := range obs.companies {
		seen := obs.seen[company]
		res := CompanyResult{
			CompanyID:       company,
			Missing:         []domain.ObservationKey{},
			MissingByMetric: make(map[string][]string),
			ObservedKeys:    len(seen),
		}

		metrics := make(map[string]struct{})
		for key := range seen {
			metrics[key.MetricName] = struct{}{}
		}
		res.DistinctMetrics = len(metrics)

		for _, key := range report.Universe {
			if _, ok := seen[key]; ok {
				continue
			}
			res.Missing = append(res.Missing, key)
			res.MissingByMetric[key.MetricName] = append(res.MissingByMetric[key.MetricName], key.TimeRange)
			missingCounts[key]++
		}

		res.MissingCount = len(res.Missing)
		res.HasAll = res.MissingCount == 0
		res.CoveragePercentage = coverage(len(seen), len(report.Universe))

		report.index[company] = len(report.Companies)
		report.Companies = append(report.Companies, res)
	}

	report.Summary = summarize(report, missingCounts)
	return report
}

func coverage(observed, universe int) float64 {
	if universe == 0 {
		return 100
	}
	return float64(observed) / float64(universe) * 100
}

func summarize(report *Report, missingCounts map[domain.ObservationKey]int) domain.CompletenessSummary {
	s := domain.CompletenessSummary{
		TotalCompanies:        len(report.Companies),
		UniqueMissingKeys:     len(missingCounts),
		MostFrequentlyMissing: []domain.MissingKey{},
	}

	for _, c := range report.Companies {
		if !c.HasAll {
			s.CompaniesWithMissing++
		}
	}
	s.CompaniesComplete = s.TotalCompanies - s.CompaniesWithMissing
	if s.TotalCompanies > 0 {
		s.PercentComplete = float64(s.CompaniesComplete) / float64(s.TotalCompanies) * 100
	}

	// Universe order is the tie breaker.
	for _, key := range report.Universe {
		if n := missingCounts[key]; n > 0 {
			s.MostFrequentlyMissing = append(s.MostFrequentlyMissing, domain.MissingKey{Key: key, Count: n})
		}
	}
	sort.SliceStable(s.MostFrequentlyMissing, func(i, j int) bool {
		return s.MostFrequentlyMissing[i].Count > s.MostFrequentlyMissing[j].Count
	})
	if len(s.MostFrequentlyMissing) > topMissing {
		s.MostFrequentlyMissing = s.MostFrequentlyMissing[:topMissing]
	}

	return s
}
