// Package yamlconfig loads the YAML workflow configuration document
// (version, locations, dependencies, and each location's body) into the
// in-memory workflow model. The `blocks` section is a structural mirror of
// workflow.Expr (nesting stands in for grammar), not a surface-syntax
// parser: there is no free-form expression text to tokenize or give
// operator precedence to.
package yamlconfig

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/corewire/flowc/pkg/workflow"
)

// Document mirrors the top-level YAML shape.
type Document struct {
	Version      string                       `yaml:"version"`
	Locations    map[string]LocationSpec      `yaml:"locations"`
	Dependencies map[string]DataSpec          `yaml:"dependencies"`
	Blocks       map[string]LocationBlockSpec `yaml:"blocks,omitempty"`
}

// LocationSpec is one entry of the `locations` map.
type LocationSpec struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`
	Workdir  string `yaml:"workdir"`
}

// DataSpec is one entry of the `dependencies` map.
type DataSpec struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading config %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse parses a YAML config document from raw bytes.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, xerrors.Errorf("parsing config: %w", err)
	}
	return &doc, nil
}

// ToLocations converts the document's location specs into workflow.Location
// values keyed by name.
func (d *Document) ToLocations() map[string]workflow.Location {
	out := make(map[string]workflow.Location, len(d.Locations))
	for name, spec := range d.Locations {
		out[name] = workflow.Location{
			Name:     name,
			Hostname: spec.Hostname,
			Port:     spec.Port,
			Workdir:  spec.Workdir,
		}
	}
	return out
}

// ToDependencies converts the document's dependency specs into workflow.Data
// values keyed by name, validating that each declared type is one of the
// four supported PortValue tags.
func (d *Document) ToDependencies() (map[string]workflow.Data, error) {
	out := make(map[string]workflow.Data, len(d.Dependencies))
	for name, spec := range d.Dependencies {
		dt := workflow.DataType(spec.Type)
		switch dt {
		case workflow.TypeFile, workflow.TypeString, workflow.TypeInt, workflow.TypeBool:
		default:
			return nil, xerrors.Errorf("dependency %q: unsupported data type %q", name, spec.Type)
		}
		out[name] = workflow.Data{Name: name, Type: dt, Value: spec.Value}
	}
	return out, nil
}
