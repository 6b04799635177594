package options

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadProfile reads an options record from a YAML file.
//
// A profile typically supplies the registered defaults of a connector:
//
//	protocol: wss:
//	host: codec.example.com
//	username: integrator
//	params:
//	  insecure: "true"
func LoadProfile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes an options record from YAML. Unknown top-level keys
// are rejected.
func ParseProfile(data []byte) (Options, error) {
	var o Options
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		if errors.Is(err, io.EOF) {
			return Options{}, nil
		}
		return Options{}, fmt.Errorf("parse profile: %w", err)
	}
	return o, nil
}
