// Package frontend loads design documents emitted by an external HDL parser.
// Documents are JSON or YAML; each one is checked against the CUE design
// schema before it is decoded into an hdl.Design.
package frontend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/validator"
)

// FrontEndError reports a design that cannot be read, validated or merged.
// It is fatal: the engine never sees the design.
type FrontEndError struct {
	File string
	Err  error
}

func (e *FrontEndError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("front end: %v", e.Err)
	}
	return fmt.Sprintf("front end: %s: %v", e.File, e.Err)
}

func (e *FrontEndError) Unwrap() error {
	return e.Err
}

// Loader reads and validates design documents
type Loader struct {
	validator *validator.Validator
	log       logrus.FieldLogger
}

// New creates a Loader with the embedded design schema
func New(log logrus.FieldLogger) (*Loader, error) {
	v, err := validator.New()
	if err != nil {
		return nil, err
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Loader{validator: v, log: log}, nil
}

// Extract reads one design document
func (l *Loader) Extract(filePath string) (*hdl.Design, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &FrontEndError{File: filePath, Err: fmt.Errorf("reading file: %w", err)}
	}
	d, err := l.Decode(data, filePath)
	if err != nil {
		return nil, &FrontEndError{File: filePath, Err: err}
	}
	l.log.WithField("file", filePath).Debugf("loaded %d modules", len(d.Modules))
	return d, nil
}

// Decode validates and decodes one document. JSON is accepted as a YAML subset.
func (l *Loader) Decode(data []byte, source string) (*hdl.Design, error) {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if generic == nil {
		return nil, errors.New("empty design document")
	}
	jsonBytes, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	if err := l.validator.ValidateJSON(jsonBytes, source); err != nil {
		return nil, err
	}

	var d hdl.Design
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	return &d, nil
}

// Load reads every document and merges their modules into one design. A
// non-empty top overrides the top module named by the documents.
func (l *Loader) Load(paths []string, top string) (*hdl.Design, error) {
	if len(paths) == 0 {
		return nil, &FrontEndError{Err: errors.New("no design files given")}
	}
	merged := &hdl.Design{}
	origin := make(map[string]string)
	topOrigin := ""
	for _, path := range paths {
		d, err := l.Extract(path)
		if err != nil {
			return nil, err
		}
		for _, mod := range d.Modules {
			if first, dup := origin[mod.Name]; dup {
				return nil, &FrontEndError{File: path, Err: fmt.Errorf("duplicate module %s (first defined in %s)", mod.Name, first)}
			}
			origin[mod.Name] = path
			merged.Modules = append(merged.Modules, mod)
		}
		if d.Top == "" {
			continue
		}
		if merged.Top != "" && merged.Top != d.Top && top == "" {
			return nil, &FrontEndError{File: path, Err: fmt.Errorf("top module %s conflicts with %s from %s", d.Top, merged.Top, topOrigin)}
		}
		if merged.Top == "" {
			merged.Top, topOrigin = d.Top, path
		}
	}
	if top != "" {
		merged.Top = top
	}
	if merged.Top != "" && merged.Module(merged.Top) == nil {
		return nil, &FrontEndError{Err: fmt.Errorf("top module %s is not defined", merged.Top)}
	}
	if err := checkInstances(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// checkInstances rejects instantiations of modules no document defines
func checkInstances(d *hdl.Design) error {
	for _, mod := range d.Modules {
		for _, inst := range mod.Instances {
			if d.Module(inst.Module) == nil {
				return &FrontEndError{Err: fmt.Errorf("module %s instantiates unknown module %s", mod.Name, inst.Module)}
			}
		}
	}
	return nil
}
