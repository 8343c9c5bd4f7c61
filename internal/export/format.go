// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package export

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Format is the serialization of an exported document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatYAML
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ParseFormat parses a format name. "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", sxerr.Errorf(sxerr.CodeExportFormatInvalid, "unsupported export format %q (want json or yaml)", s)
	}
}

// Encode writes v to w in the given format with two-space indentation.
// YAML output keeps the JSON field names and order.
func Encode(w io.Writer, v any, f Format) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "encoding document")
	}

	switch f {
	case FormatJSON:
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "writing document")
		}
		return nil
	case FormatYAML:
		return encodeYAML(w, data)
	default:
		return sxerr.Errorf(sxerr.CodeExportFormatInvalid, "unsupported export format %q", f)
	}
}

// encodeYAML re-reads JSON as a YAML node tree, so struct json tags drive
// the keys, then prints it in block style.
func encodeYAML(w io.Writer, jsonDoc []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(jsonDoc, &doc); err != nil {
		return sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "converting document to yaml")
	}
	blockStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "encoding yaml")
	}
	if err := enc.Close(); err != nil {
		return sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "encoding yaml")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return sxerr.Wrap(err, sxerr.CodeExportWriteFailure, "writing document")
	}
	return nil
}

// blockStyle drops the flow and quoting styles inherited from JSON. The
// encoder still quotes strings that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
