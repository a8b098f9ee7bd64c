package report

import (
	"math"
	"sort"

	"github.com/opensource-finance/heron/internal/completeness"
	"github.com/opensource-finance/heron/internal/domain"
)

type metricAcc struct {
	stats  domain.MetricStatistics
	values []float64
}

type groupAcc struct {
	stats domain.GroupStatistics
	seen  map[string]bool
}

// Summarize aggregates row results. ExecutionTimeSeconds is left to the caller.
func Summarize(results []domain.RowResult, comp *completeness.Report) *domain.RunSummary {
	var (
		metricOrder []string
		metrics     = make(map[string]*metricAcc)
		groupOrder  []string
		groups      = make(map[string]*groupAcc)
		companies   = make(map[string]bool)
		withErrors  = make(map[string]bool)
		companyIDs  []string
	)

	summary := &domain.RunSummary{
		SeverityDistribution: make(map[domain.Severity]int, len(domain.Severities)),
	}
	for _, s := range domain.Severities {
		summary.SeverityDistribution[s] = 0
	}

	for _, r := range results {
		if !companies[r.CompanyID] {
			companies[r.CompanyID] = true
			companyIDs = append(companyIDs, r.CompanyID)
		}

		m, ok := metrics[r.MetricName]
		if !ok {
			m = &metricAcc{stats: domain.MetricStatistics{
				MetricName:     r.MetricName,
				SeverityCounts: make(map[domain.Severity]int),
			}}
			metrics[r.MetricName] = m
			metricOrder = append(metricOrder, r.MetricName)
		}
		m.stats.Group = r.MetricGroup
		m.stats.TotalValidations++
		m.stats.SeverityCounts[r.Severity]++
		if r.Value != nil {
			m.values = append(m.values, *r.Value)
		}

		summary.ExecutionInfo.TotalMetricsValidated++
		summary.SeverityDistribution[r.Severity]++

		if r.Passed {
			m.stats.SuccessCount++
		} else {
			m.stats.ErrorCount++
			summary.ExecutionInfo.TotalErrors++
			withErrors[r.CompanyID] = true
		}

		if r.MetricGroup == "" {
			continue
		}
		g, ok := groups[r.MetricGroup]
		if !ok {
			g = &groupAcc{stats: domain.GroupStatistics{Group: r.MetricGroup, Metrics: []string{}}, seen: make(map[string]bool)}
			groups[r.MetricGroup] = g
			groupOrder = append(groupOrder, r.MetricGroup)
		}
		g.stats.TotalValidations++
		if r.Passed {
			g.stats.SuccessCount++
		} else {
			g.stats.ErrorCount++
		}
		if !g.seen[r.MetricName] {
			g.seen[r.MetricName] = true
			g.stats.Metrics = append(g.stats.Metrics, r.MetricName)
		}
	}

	summary.ExecutionInfo.TotalCompanies = len(companyIDs)
	summary.ExecutionInfo.CompaniesWithErrors = len(withErrors)

	summary.MetricStatistics = make([]domain.MetricStatistics, 0, len(metricOrder))
	summary.ErrorDistribution = make([]domain.MetricCount, 0, len(metricOrder))
	for _, name := range metricOrder {
		m := metrics[name]
		m.stats.SuccessRate = rate(m.stats.SuccessCount, m.stats.TotalValidations)
		m.stats.ValueStats = describe(m.values)
		summary.MetricStatistics = append(summary.MetricStatistics, m.stats)
		summary.ErrorDistribution = append(summary.ErrorDistribution, domain.MetricCount{
			MetricName: name,
			Count:      m.stats.ErrorCount,
		})
	}
	sort.SliceStable(summary.ErrorDistribution, func(i, j int) bool {
		return summary.ErrorDistribution[i].Count > summary.ErrorDistribution[j].Count
	})

	summary.GroupStatistics = make([]domain.GroupStatistics, 0, len(groupOrder))
	for _, name := range groupOrder {
		g := groups[name]
		g.stats.SuccessRate = rate(g.stats.SuccessCount, g.stats.TotalValidations)
		summary.GroupStatistics = append(summary.GroupStatistics, g.stats)
	}

	if comp != nil {
		summary.Completeness = comp.Summary
		summary.ExecutionInfo.CompaniesMissingMetrics = comp.Summary.CompaniesWithMissing
	}

	return summary
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// describe computes min, max, mean, median and population standard deviation.
func describe(values []float64) *domain.ValueStats {
	if len(values) == 0 {
		return nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := float64(len(sorted))
	mean := sum / n

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return &domain.ValueStats{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: median,
		Std:    math.Sqrt(sq / n),
	}
}
