// Package capfile loads the firmware-gated command templates of the
// capability database. A default table is embedded; an optional JSON or YAML
// file layers on top of it, replacing functions by product and code.
package capfile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/protocol"
)

//go:embed default_capabilities.json
var defaultJSON []byte

// File is the on-disk capability database.
type File struct {
	Version  int       `json:"version" yaml:"version"`
	Products []Product `json:"products" yaml:"products"`
}

// Product lists the functions of one product ID. Name is informational.
type Product struct {
	ProductID int                           `json:"product_id" yaml:"product_id"`
	Name      string                        `json:"name,omitempty" yaml:"name,omitempty"`
	Functions []capability.FunctionTemplate `json:"functions" yaml:"functions"`
}

// Format selects the parser.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension; anything but .yaml/.yml
// is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes and validates a capability file.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse capability file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks product IDs, function codes and templates.
func (f *File) Validate() error {
	for _, p := range f.Products {
		if p.ProductID < 0 || p.ProductID > 0xFF {
			return fmt.Errorf("product %d: id out of range", p.ProductID)
		}
		for i, fn := range p.Functions {
			if fn.Code == "" {
				return fmt.Errorf("product 0x%02X function #%d: missing code", p.ProductID, i)
			}
			if err := protocol.ValidateTemplate(fn.Template); err != nil {
				return fmt.Errorf("product 0x%02X function %q: %w", p.ProductID, fn.Code, err)
			}
			for name, r := range fn.Params {
				if r.Min > r.Max {
					return fmt.Errorf("product 0x%02X function %q: param %q has min > max", p.ProductID, fn.Code, name)
				}
			}
		}
	}
	return nil
}

// Table converts the file into the form the capability database takes.
func (f *File) Table() capability.FunctionTable {
	table := make(capability.FunctionTable, len(f.Products))
	f.mergeInto(table)
	return table
}

func (f *File) mergeInto(table capability.FunctionTable) {
	for _, p := range f.Products {
		pid := uint8(p.ProductID)
		set, ok := table[pid]
		if !ok {
			set = capability.FunctionSet{}
			table[pid] = set
		}
		for _, fn := range p.Functions {
			set[fn.Code] = fn
		}
	}
}

// Default returns the embedded table.
func Default() (*File, error) {
	return Parse(defaultJSON, FormatJSON)
}

// Load returns the embedded table with the file at path layered on top. An
// empty path loads the defaults only.
func Load(path string, logger *logrus.Logger) (capability.FunctionTable, error) {
	if logger == nil {
		logger = logrus.New()
	}

	def, err := Default()
	if err != nil {
		return nil, fmt.Errorf("embedded capability table: %w", err)
	}
	table := def.Table()
	if path == "" {
		logger.WithField("products", len(table)).Debug("Loaded embedded capability table")
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	override, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	override.mergeInto(table)

	logger.WithFields(logrus.Fields{
		"path":     filepath.Base(path),
		"override": len(override.Products),
		"products": len(table),
	}).Info("Loaded capability file")
	return table, nil
}
