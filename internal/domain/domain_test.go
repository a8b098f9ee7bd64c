package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseValidationType(t *testing.T) {
	for _, s := range []string{"ratio", "RATIO", " Cashflow "} {
		if _, err := ParseValidationType(s); err != nil {
			t.Errorf("%q: unexpected error %v", s, err)
		}
	}
	if _, err := ParseValidationType("histogram"); !errors.Is(err, ErrUnknownValidationType) {
		t.Errorf("expected ErrUnknownValidationType, got %v", err)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"error", SeverityError, true},
		{"Warning", SeverityWarning, true},
		{"INFO", SeverityInfo, true},
		{"fatal", "", false},
		{" warning ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSeverity(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSeverity(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBoundJSON(t *testing.T) {
	tests := []struct {
		bound Bound
		json  string
	}{
		{Unbounded(), `null`},
		{Fixed(-1.5), `-1.5`},
		{Dynamic(UnitInterval), `{"dynamic":"unit_interval"}`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.bound)
		if err != nil {
			t.Fatalf("marshal %v: %v", tt.bound, err)
		}
		if string(data) != tt.json {
			t.Errorf("expected %s, got %s", tt.json, data)
		}

		var back Bound
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back.Kind != tt.bound.Kind || back.Value != tt.bound.Value || back.Dynamic != tt.bound.Dynamic {
			t.Errorf("expected %+v, got %+v", tt.bound, back)
		}
	}

	var b Bound
	if err := json.Unmarshal([]byte(`{"dynamic":"sometimes"}`), &b); !errors.Is(err, ErrInvalidBound) {
		t.Errorf("expected ErrInvalidBound, got %v", err)
	}
	if err := json.Unmarshal([]byte(`"five"`), &b); !errors.Is(err, ErrInvalidBound) {
		t.Errorf("expected ErrInvalidBound, got %v", err)
	}
}

func TestMetricRuleJSONOmitsCustomFunc(t *testing.T) {
	r := &MetricRule{
		MetricName:       "m",
		ValidationType:   TypeRatio,
		MinValue:         Dynamic(GrowthRateFloor),
		CustomValidation: func(float64) (bool, string) { return true, "" },
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back MetricRule
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.MinValue != r.MinValue || !back.MaxValue.IsUnbounded() {
		t.Errorf("bounds not preserved: %+v", back)
	}
	if back.CustomValidation != nil {
		t.Error("custom validation must not be serialized")
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Min: Float(0), Max: Float(1)}
	if !r.Contains(0) || !r.Contains(1) || r.Contains(1.0001) || r.Contains(-0.1) {
		t.Errorf("inclusive range check failed for %s", r)
	}
	if !(Range{}).Contains(-1e300) {
		t.Error("empty range must contain everything")
	}
	if got := (Range{Min: Float(-1)}).String(); got != "-1 to unbounded" {
		t.Errorf("unexpected rendering %q", got)
	}
}

func TestObservationKey(t *testing.T) {
	row := MetricRow{CompanyID: "c1", MetricName: "revenue"}
	if row.Key() != (ObservationKey{MetricName: "revenue", TimeRange: DefaultTimeRange}) {
		t.Errorf("expected default time range, got %+v", row.Key())
	}
	if got := NewObservationKey("revenue", "last_90_days").String(); got != "revenue_last_90_days" {
		t.Errorf("unexpected key string %q", got)
	}
}
