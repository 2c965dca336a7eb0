// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package presets stores named raw commands in a TOML file.
package presets

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// ErrNotFound is returned when a preset name is not defined
var ErrNotFound = errors.New("preset not found")

// Preset is one saved command
type Preset struct {
	Name        string `toml:"name"`
	Hex         string `toml:"hex"`
	Description string `toml:"description,omitempty"`
}

// Bytes parses the preset's hex command
func (p Preset) Bytes() ([]byte, error) {
	b, err := prdtir.ParseHex(p.Hex)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.Name, err)
	}
	return b, nil
}

type file struct {
	Presets []Preset `toml:"preset"`
}

// Set is a collection of presets keyed by name
type Set struct {
	byName map[string]Preset
}

// Defaults returns one preset per workflow operation
func Defaults() *Set {
	s := &Set{byName: make(map[string]Preset)}
	for _, op := range prdtir.Operations {
		s.byName[op.String()] = Preset{
			Name:        op.String(),
			Hex:         prdtir.FormatHex(prdtir.CommandBytes(op)),
			Description: "start " + op.String() + " acquisition",
		}
	}
	return s
}

// Load reads presets from path on top of the defaults. A missing file yields
// the defaults alone.
func Load(path string) (*Set, error) {
	s := Defaults()

	var raw file
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("load presets: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load presets: unknown keys %v", undecoded)
	}

	for _, p := range raw.Presets {
		if err := s.Add(p); err != nil {
			return nil, fmt.Errorf("load presets: %w", err)
		}
	}
	return s, nil
}

// Add inserts or replaces a preset after validating its hex
func (s *Set) Add(p Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("preset name is empty")
	}
	b, err := p.Bytes()
	if err != nil {
		return err
	}
	p.Hex = prdtir.FormatHex(b)
	s.byName[p.Name] = p
	return nil
}

// Remove deletes a preset
func (s *Set) Remove(name string) error {
	if _, ok := s.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.byName, name)
	return nil
}

// Get looks up a preset by name
func (s *Set) Get(name string) (Preset, error) {
	p, ok := s.byName[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// List returns the presets sorted by name
func (s *Set) List() []Preset {
	out := make([]Preset, 0, len(s.byName))
	for _, p := range s.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Save writes the set to path
func (s *Set) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(file{Presets: s.List()}); err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save presets: %w", err)
	}
	return nil
}
