// Package ingest reads long-format metric CSVs and writes validated and wide outputs.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/opensource-finance/heron/internal/domain"
)

// ErrInvalidRow is returned for rows that cannot be decoded.
var ErrInvalidRow = errors.New("invalid row")

// Input column names.
const (
	ColumnCompany   = "heron_id"
	ColumnMetric    = "metric_label"
	ColumnValue     = "metric_value"
	ColumnTimeRange = "metric_date_range"
)

var requiredColumns = []string{ColumnCompany, ColumnMetric, ColumnValue}

// optionalFloat is a CSV cell holding a number or nothing.
// Empty cells and NaN decode to nil.
type optionalFloat struct {
	v *float64
}

func (o optionalFloat) MarshalCSV() ([]byte, error) {
	if o.v == nil {
		return nil, nil
	}
	return []byte(strconv.FormatFloat(*o.v, 'f', -1, 64)), nil
}

func (o *optionalFloat) UnmarshalCSV(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" {
		o.v = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: not a number: %q", ErrInvalidRow, s)
	}
	if math.IsNaN(v) {
		o.v = nil
		return nil
	}
	o.v = &v
	return nil
}

type inputRecord struct {
	CompanyID  string        `csv:"heron_id"`
	MetricName string        `csv:"metric_label"`
	Value      optionalFloat `csv:"metric_value"`
	TimeRange  string        `csv:"metric_date_range"`
}

type outputRecord struct {
	CompanyID            string        `csv:"heron_id"`
	MetricName           string        `csv:"metric_label"`
	Value                optionalFloat `csv:"metric_value"`
	TimeRange            string        `csv:"metric_date_range"`
	Passed               bool          `csv:"validation_passed"`
	Message              string        `csv:"validation_message"`
	ExpectedMin          optionalFloat `csv:"expected_min"`
	ExpectedMax          optionalFloat `csv:"expected_max"`
	Severity             string        `csv:"severity"`
	MetricGroup          string        `csv:"metric_group"`
	CompanyHasAllMetrics bool          `csv:"company_has_all_metrics"`
}

// ReadRowsFile reads a long-format metrics CSV from path.
func ReadRowsFile(path string) ([]domain.MetricRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return ReadRows(f)
}

// ReadRows decodes long-format rows. Extra columns are ignored; a missing
// metric_date_range column or an empty cell yields domain.DefaultTimeRange.
func ReadRows(r io.Reader) ([]domain.MetricRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrInvalidRow)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if err := checkHeader(dec.Header()); err != nil {
		return nil, err
	}

	var rows []domain.MetricRow
	for line := 2; ; line++ {
		var rec inputRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if strings.TrimSpace(rec.CompanyID) == "" || strings.TrimSpace(rec.MetricName) == "" {
			return nil, fmt.Errorf("line %d: %w: company and metric are required", line, ErrInvalidRow)
		}

		timeRange := strings.TrimSpace(rec.TimeRange)
		if timeRange == "" {
			timeRange = domain.DefaultTimeRange
		}

		rows = append(rows, domain.MetricRow{
			CompanyID:  strings.TrimSpace(rec.CompanyID),
			MetricName: strings.TrimSpace(rec.MetricName),
			Value:      rec.Value.v,
			TimeRange:  timeRange,
		})
	}
	return rows, nil
}

func checkHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrInvalidRow, strings.Join(missing, ", "))
	}
	return nil
}

// WriteResults writes validated rows with their verdict columns.
func WriteResults(w io.Writer, results []domain.RowResult) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(outputRecord{}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		rec := outputRecord{
			CompanyID:            r.CompanyID,
			MetricName:           r.MetricName,
			Value:                optionalFloat{r.Value},
			TimeRange:            r.TimeRange,
			Passed:               r.Passed,
			Message:              r.Message,
			ExpectedMin:          optionalFloat{r.ExpectedMin},
			ExpectedMax:          optionalFloat{r.ExpectedMax},
			Severity:             string(r.Severity),
			MetricGroup:          r.MetricGroup,
			CompanyHasAllMetrics: r.CompanyHasAllMetrics,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteResultsFile writes validated rows to path.
func WriteResultsFile(path string, results []domain.RowResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := WriteResults(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
