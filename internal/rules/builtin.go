package rules

import "github.com/opensource-finance/heron/internal/domain"

// seededSeverity is declared by every built-in rule, so valid and invalid
// values of seeded metrics alike report ERROR.
const seededSeverity = "error"

func rule(name string, vt domain.ValidationType, min domain.Bound, description string) *domain.MetricRule {
	return &domain.MetricRule{
		MetricName:     name,
		ValidationType: vt,
		MinValue:       min,
		MaxValue:       domain.Unbounded(),
		Description:    description,
		Severity:       seededSeverity,
	}
}

// DefaultGroups returns the built-in rule table. Every rule declares only a
// lower bound and the "error" severity.
func DefaultGroups() []domain.RuleGroup {
	return []domain.RuleGroup{
		{
			Name: "balance",
			Rules: []*domain.MetricRule{
				rule("inflow_growth_rate", domain.TypeRatio, domain.Dynamic(domain.GrowthRateFloor),
					"Growth rate should be >= -1 (can be negative but not less than -100%)"),
				rule("inflow_daily_average", domain.TypeNonNegative, domain.Fixed(0),
					"Daily average inflow should be non-negative"),
				rule("outflow_daily_average", domain.TypeCashflow, domain.Dynamic(domain.NonPositive),
					"Daily average outflow should be negative (less than or equal to 0)"),
				rule("latest_balance", domain.TypeAmount, domain.Unbounded(),
					"Latest balance can be positive or negative"),
				rule("balance_minimum", domain.TypeAmount, domain.Unbounded(),
					"Minimum balance can be positive or negative"),
				rule("balance_average", domain.TypeAmount, domain.Unbounded(),
					"Average balance can be positive or negative"),
				rule("change_in_balance", domain.TypeCashflow, domain.Dynamic(domain.UnboundedBoth),
					"Change in balance can be positive or negative"),
				rule("weekday_balance_average", domain.TypeAmount, domain.Unbounded(),
					"Weekday average balance can be positive or negative"),
				rule("weekday_with_highest_avg", domain.TypeWeekday, domain.Dynamic(domain.WeekdayRange),
					"Weekday should be between 0 (Monday) and 6 (Sunday)"),
				rule("weekday_with_lowest_avg", domain.TypeWeekday, domain.Dynamic(domain.WeekdayRange),
					"Weekday should be between 0 (Monday) and 6 (Sunday)"),
			},
		},
		{
			Name: "data_quality",
			Rules: []*domain.MetricRule{
				rule("data_volume", domain.TypeNonZero, domain.Fixed(1),
					"Should have at least one transaction"),
				rule("date_range", domain.TypeNonNegative, domain.Fixed(0),
					"Date range should be non-negative"),
				rule("data_freshness", domain.TypeNonNegative, domain.Fixed(0),
					"Days since last transaction should be non-negative"),
				rule("has_balance_ratio", domain.TypeRatio, domain.Dynamic(domain.UnitInterval),
					"Ratio should be between 0 and 1"),
				rule("data_coverage", domain.TypeRatio, domain.Dynamic(domain.UnitInterval),
					"Coverage ratio should be between 0 and 1"),
				rule("accounts", domain.TypeNonZero, domain.Fixed(1),
					"Should have at least one account"),
				rule("potentially_duplicated_account_pairs", domain.TypeNonNegative, domain.Fixed(0),
					"Count of duplicate pairs should be non-negative"),
				rule("inflows", domain.TypeNonNegative, domain.Fixed(0),
					"Count of inflows should be non-negative"),
				rule("outflows", domain.TypeNonNegative, domain.Fixed(0),
					"Count of outflows should be non-negative"),
				rule("inflow_amount", domain.TypeNonNegative, domain.Fixed(0),
					"Total inflow amount should be non-negative"),
				rule("confidence", domain.TypeRatio, domain.Dynamic(domain.UnitInterval),
					"Confidence score should be between 0 and 1"),
				rule("revenue_anomalies", domain.TypeNonNegative, domain.Fixed(0),
					"Count of anomalies should be non-negative"),
			},
		},
		{
			Name: "debt",
			Rules: []*domain.MetricRule{
				rule("last_debt_investment", domain.TypeNonNegative, domain.Fixed(0),
					"Last debt investment amount should be non-negative"),
				rule("last_debt_investment_days", domain.TypeNonNegative, domain.Fixed(0),
					"Days since last investment should be non-negative"),
				rule("debt_repayment_daily_average", domain.TypeNonNegative, domain.Fixed(0),
					"Average daily debt repayment should be non-negative"),
				rule("debt_investment", domain.TypeNonNegative, domain.Fixed(0),
					"Total debt investment should be non-negative"),
				rule("debt_investors", domain.TypeNonNegative, domain.Fixed(0),
					"Count of debt investors should be non-negative"),
				rule("debt_investment_count", domain.TypeNonNegative, domain.Fixed(0),
					"Count of debt investments should be non-negative"),
				rule("debt_repayment", domain.TypeNonNegative, domain.Fixed(0),
					"Total debt repayment should be non-negative"),
				rule("debt_service_coverage_ratio", domain.TypeCashflow, domain.Unbounded(),
					"Debt service coverage ratio can be positive or negative"),
			},
		},
		{
			Name: "heron",
			Rules: []*domain.MetricRule{
				rule("merchant_heron_ids", domain.TypeNonNegative, domain.Fixed(0),
					"Merchant Heron ID should be a non-negative number"),
				rule("predicted_nsf_fees", domain.TypeProbability, domain.Dynamic(domain.UnitInterval),
					"Probability should be between 0 and 1"),
				rule("predicted_balance_daily_average", domain.TypeAmount, domain.Unbounded(),
					"Predicted balance can be positive or negative"),
				rule("heron_score", domain.TypeNonNegative, domain.Fixed(0),
					"Heron score should be non-negative"),
				rule("distinct_mcas_from_outflows", domain.TypeNonNegative, domain.Fixed(0),
					"Count of distinct MCAs should be non-negative"),
				rule("distinct_mcas_from_inflows", domain.TypeNonNegative, domain.Fixed(0),
					"Count of distinct MCAs should be non-negative"),
			},
		},
		{
			Name: "processing_quality",
			Rules: []*domain.MetricRule{
				rule("category_coverage", domain.TypeRatio, domain.Dynamic(domain.UnitInterval),
					"Category coverage ratio should be between 0 and 1"),
				rule("merchant_coverage", domain.TypeRatio, domain.Dynamic(domain.UnitInterval),
					"Merchant coverage ratio should be between 0 and 1"),
				rule("unconnected_account_ratio", domain.TypeRatio, domain.Fixed(0),
					"Unconnected account ratio should be non-negative"),
			},
		},
		{
			Name: "profit_and_loss",
			Rules: []*domain.MetricRule{
				rule("revenue_daily_average", domain.TypeNonNegative, domain.Fixed(0),
					"Average daily revenue should be non-negative"),
				rule("cogs_daily_average", domain.TypeNonNegative, domain.Fixed(0),
					"Average daily COGS should be non-negative"),
				rule("opex_daily_average", domain.TypeNonNegative, domain.Fixed(0),
					"Average daily operational expenses should be non-negative"),
				rule("revenue_sources", domain.TypeNonNegative, domain.Fixed(0),
					"Count of revenue sources should be non-negative"),
				rule("revenue", domain.TypeNonNegative, domain.Fixed(0),
					"Total revenue should be non-negative"),
				rule("annualized_revenue", domain.TypeNonNegative, domain.Fixed(0),
					"Annualized revenue should be non-negative"),
				rule("cogs", domain.TypeNonNegative, domain.Fixed(0),
					"Total COGS should be non-negative"),
				rule("average_credit_card_spend", domain.TypeNonNegative, domain.Fixed(0),
					"Average credit card spend should be non-negative"),
				rule("opex", domain.TypeNonNegative, domain.Fixed(0),
					"Total operational expenses should be non-negative"),
				rule("revenue_growth_rate", domain.TypeRatio, domain.Dynamic(domain.GrowthRateFloor),
					"Revenue growth rate should be >= -1 (can be negative but not less than -100%)"),
				rule("revenue_profit_and_loss", domain.TypeNonNegative, domain.Fixed(0),
					"Total revenue from P&L view should be non-negative"),
				rule("annualized_revenue_profit_and_loss", domain.TypeNonNegative, domain.Fixed(0),
					"Annualized revenue from P&L view should be non-negative"),
				rule("cogs_profit_and_loss", domain.TypeNonNegative, domain.Fixed(0),
					"Total COGS from P&L view should be non-negative"),
				rule("opex_profit_and_loss", domain.TypeNonNegative, domain.Fixed(0),
					"Total Opex from P&L view should be non-negative"),
				rule("revenue_monthly_average", domain.TypeNonNegative, domain.Fixed(0),
					"Average monthly revenue should be non-negative"),
				rule("gross_operating_cashflow", domain.TypeCashflow, domain.Dynamic(domain.UnboundedBoth),
					"Gross operating cashflow can be positive or negative"),
				rule("net_operating_cashflow", domain.TypeCashflow, domain.Dynamic(domain.UnboundedBoth),
					"Net operating cashflow can be positive or negative"),
				rule("gross_operating_cashflow_profit_and_loss", domain.TypeCashflow, domain.Dynamic(domain.UnboundedBoth),
					"Gross operating cashflow from P&L view can be positive or negative"),
				rule("net_operating_cashflow_profit_and_loss", domain.TypeCashflow, domain.Dynamic(domain.UnboundedBoth),
					"Net operating cashflow from P&L view can be positive or negative"),
				rule("gross_operating_cashflow_daily_average", domain.TypeCashflow, domain.Dynamic(domain.UnboundedBoth),
					"Average daily gross operating cashflow can be positive or negative"),
				rule("net_operating_cashflow_daily_average", domain.TypeCashflow, domain.Dynamic(domain.UnboundedBoth),
					"Average daily net operating cashflow can be positive or negative"),
			},
		},
		{
			Name: "risk_flag",
			Rules: []*domain.MetricRule{
				rule("deposit_days", domain.TypeNonNegative, domain.Fixed(0),
					"Count of deposit days should be non-negative"),
				rule("nsf_fees", domain.TypeNonNegative, domain.Fixed(0),
					"Count of NSF fees should be non-negative"),
				rule("nsf_days", domain.TypeNonNegative, domain.Fixed(0),
					"Count of NSF days should be non-negative"),
				rule("debt_collection", domain.TypeNonNegative, domain.Fixed(0),
					"Total debt collection amount should be non-negative"),
				rule("atm_withdrawals", domain.TypeNonNegative, domain.Fixed(0),
					"Total ATM withdrawal amount should be non-negative"),
				rule("tax_payments", domain.TypeNonNegative, domain.Fixed(0),
					"Count of tax payments should be non-negative"),
				rule("tax_payment_amount", domain.TypeNonNegative, domain.Fixed(0),
					"Total tax payment amount should be non-negative"),
				rule("negative_balance_days", domain.TypeNonNegative, domain.Fixed(0),
					"Count of negative balance days should be non-negative"),
				rule("negative_balance_days_by_account", domain.TypeNonNegative, domain.Fixed(0),
					"Count of negative balance days by account should be non-negative"),
			},
		},
	}
}

// DefaultCatalog returns a catalog seeded with DefaultGroups.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultGroups())
	if err != nil {
		// The built-in table is static; failing here is a programming error.
		panic(err)
	}
	return c
}
