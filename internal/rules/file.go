package rules

import (
	"fmt"
	"io"
	"os"

	"github.com/opensource-finance/heron/internal/domain"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a rules file.
type catalogFile struct {
	Groups []domain.RuleGroup `yaml:"groups"`
}

// LoadCatalogFile reads a YAML rules file and builds a catalog from it.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	c, err := ReadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return c, nil
}

// ReadCatalog decodes a YAML catalog.
//
//	groups:
//	  - name: balance
//	    rules:
//	      - metric_name: inflow_growth_rate
//	        validation_type: ratio
//	        min_value: {dynamic: growth_rate_floor}
//	        max_value: null
func ReadCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return NewCatalog(nil)
		}
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return NewCatalog(file.Groups)
}

// WriteCatalog encodes the catalog as YAML in the layout ReadCatalog accepts.
func WriteCatalog(w io.Writer, c *Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Groups: c.Snapshot()}); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}
