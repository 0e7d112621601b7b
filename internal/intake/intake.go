// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package intake reads intake records written by the capture tooling.
package intake

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/field-triage/pkg/types"
)

// batchFile is the layout of a file holding several intakes.
type batchFile struct {
	Intakes []types.Intake `yaml:"intakes"`
}

// Parse decodes a single intake from YAML or JSON. Unknown fields are
// rejected so a misspelled vital sign does not silently disappear.
func Parse(data []byte) (types.Intake, error) {
	var in types.Intake
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		if err == io.EOF {
			return types.Intake{}, fmt.Errorf("empty intake")
		}
		return types.Intake{}, fmt.Errorf("parsing intake: %w", err)
	}
	return in, nil
}

// LoadFile reads one intake from path; "-" reads standard input.
func LoadFile(path string) (types.Intake, error) {
	data, err := read(path)
	if err != nil {
		return types.Intake{}, err
	}
	in, err := Parse(data)
	if err != nil {
		return types.Intake{}, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// Load reads every intake in path. A file with a top-level intakes list
// yields each entry in order; any other file is read as a single intake.
func Load(path string) ([]types.Intake, error) {
	data, err := read(path)
	if err != nil {
		return nil, err
	}
	var head struct {
		Intakes *yaml.Node `yaml:"intakes"`
	}
	if yaml.Unmarshal(data, &head) != nil || head.Intakes == nil {
		in, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []types.Intake{in}, nil
	}

	var file batchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing intake batch %s: %w", path, err)
	}
	if len(file.Intakes) == 0 {
		return nil, fmt.Errorf("intake batch %s has no intakes", path)
	}
	return file.Intakes, nil
}

func read(path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading intake %s: %w", path, err)
	}
	return data, nil
}
