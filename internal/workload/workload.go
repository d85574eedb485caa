// Package workload provides the parse operations the probe measures.
//
// A document is read from disk once, at startup; each Parse call decodes that
// same in-memory document and discards the result.
package workload

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Format selects the decoder a Workload uses.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatGJSON    Format = "gjson"
	FormatProtobuf Format = "protobuf"
)

// ErrUnsupportedFormat is returned by Load for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Workload parses a fixed document.
type Workload interface {
	Parse() error
}

// Func adapts a function to Workload.
type Func func() error

func (f Func) Parse() error { return f() }

// Options configure Load.
type Options struct {
	Format       Format
	ProtoFile    string   // .proto describing the document, protobuf only
	ProtoMessage string   // fully-qualified message name, protobuf only
	ImportPaths  []string // extra .proto import paths
}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML, FormatGJSON, FormatProtobuf:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "proto":
		return FormatProtobuf, nil
	default:
		return "", fmt.Errorf("%w %q (use json, yaml, gjson or protobuf)", ErrUnsupportedFormat, s)
	}
}

// Load reads the document at path and returns a Workload for it.
func Load(path string, opt Options) (Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read document: %s is empty", path)
	}
	return New(data, opt)
}

// New returns a Workload over an in-memory document. The document is checked
// once so that a malformed input fails at startup rather than mid-run.
func New(data []byte, opt Options) (Workload, error) {
	format := opt.Format
	if format == "" {
		format = FormatJSON
	}

	var w Workload
	switch format {
	case FormatJSON:
		w = &jsonWorkload{data: data}
	case FormatYAML:
		w = &yamlWorkload{data: data}
	case FormatGJSON:
		w = &gjsonWorkload{data: data}
	case FormatProtobuf:
		pw, err := newProtobufWorkload(data, opt)
		if err != nil {
			return nil, err
		}
		w = pw
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}

	if err := w.Parse(); err != nil {
		return nil, fmt.Errorf("%s document: %w", format, err)
	}
	return w, nil
}

type jsonWorkload struct {
	data []byte
}

func (w *jsonWorkload) Parse() error {
	var doc interface{}
	return json.Unmarshal(w.data, &doc)
}

type yamlWorkload struct {
	data []byte
}

func (w *yamlWorkload) Parse() error {
	var doc interface{}
	return yaml.Unmarshal(w.data, &doc)
}

// gjsonWorkload validates the document and visits every value in it.
type gjsonWorkload struct {
	data []byte
}

func (w *gjsonWorkload) Parse() error {
	if !gjson.ValidBytes(w.data) {
		return errors.New("invalid JSON")
	}
	walk(gjson.ParseBytes(w.data))
	return nil
}

func walk(v gjson.Result) int {
	if !v.IsObject() && !v.IsArray() {
		return 1
	}
	n := 0
	v.ForEach(func(_, value gjson.Result) bool {
		n += walk(value)
		return true
	})
	return n
}
