// Package textconf parses structured text configuration files into typed
// values. Protobuf messages are read with the protobuf text format; plain Go
// structs are read as YAML (or JSON for .json files). Flat "key: value" files
// are valid under both, so a controller_conf.pb.txt can back either kind of
// target.
package textconf

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound  = errors.New("textconf: file not found")
	ErrMalformed = errors.New("textconf: malformed content")
	ErrTarget    = errors.New("textconf: target must be a non-nil pointer")
)

type Format int

const (
	FormatAuto Format = iota
	FormatYAML
	FormatJSON
	FormatProtoText
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	case FormatProtoText:
		return "prototext"
	default:
		return "auto"
	}
}

// FormatFor picks the decoder for a path and target.
func FormatFor(path string, out any) Format {
	if _, ok := out.(proto.Message); ok {
		return FormatProtoText
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ParseFromFile reads path and decodes it into out.
func ParseFromFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "%s", path)
		}
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := Parse(data, FormatFor(path, out), out); err != nil {
		return errors.Wrapf(err, "%s", path)
	}
	return nil
}

func Parse(data []byte, format Format, out any) error {
	if out == nil {
		return ErrTarget
	}
	if format == FormatAuto {
		format = FormatFor("", out)
	}

	switch format {
	case FormatProtoText:
		m, ok := out.(proto.Message)
		if !ok {
			return errors.Wrapf(ErrTarget, "%T is not a proto message", out)
		}
		if err := prototext.Unmarshal(data, m); err != nil {
			return errors.Wrap(ErrMalformed, err.Error())
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(out); err != nil && err != io.EOF {
			return errors.Wrap(ErrMalformed, err.Error())
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil && err != io.EOF {
			return errors.Wrap(ErrMalformed, err.Error())
		}
	}
	return nil
}
