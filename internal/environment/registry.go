// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package environment

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/field-triage/pkg/types"
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// tierAll applies an extra-actions entry to every tier.
const tierAll = "all"

// Registry holds the environment profiles known to a deployment.
type Registry struct {
	version  string
	profiles map[types.EnvironmentType]Profile
}

// profilesFile is the on-disk layout of a policy table file.
type profilesFile struct {
	Version  string        `yaml:"version"`
	Profiles []profileFile `yaml:"profiles"`
}

type profileFile struct {
	Name           types.EnvironmentType         `yaml:"name"`
	GuidanceNote   string                        `yaml:"guidance_note"`
	EscalationNote string                        `yaml:"escalation_note"`
	AdaptationNote string                        `yaml:"adaptation_note,omitempty"`
	Constraints    []string                      `yaml:"constraints"`
	Policies       map[types.ReferralKind]Policy `yaml:"policies"`
	NextSteps      map[string]string             `yaml:"next_steps"`
	ExtraActions   map[string][]string           `yaml:"extra_actions"`
}

// DefaultRegistry returns the built-in profiles for standard, remote_village
// and limited_access_region. The tables are example data and can be replaced
// with LoadRegistry.
func DefaultRegistry() (*Registry, error) {
	reg, err := ParseRegistry(defaultProfilesYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in profiles: %w", err)
	}
	return reg, nil
}

// LoadRegistry reads profiles from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles %s: %w", path, err)
	}
	reg, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("parsing profiles %s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry decodes and validates a profiles document.
func ParseRegistry(data []byte) (*Registry, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Version == "" {
		return nil, fmt.Errorf("profiles document has no version")
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("profiles document defines no profiles")
	}

	reg := &Registry{version: file.Version, profiles: make(map[types.EnvironmentType]Profile)}
	for _, pf := range file.Profiles {
		p, err := pf.toProfile(file.Version)
		if err != nil {
			return nil, err
		}
		if _, dup := reg.profiles[p.Name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		reg.profiles[p.Name] = p
	}
	return reg, nil
}

func (pf profileFile) toProfile(version string) (Profile, error) {
	p := Profile{
		Name:           pf.Name,
		Version:        version,
		GuidanceNote:   pf.GuidanceNote,
		EscalationNote: pf.EscalationNote,
		AdaptationNote: pf.AdaptationNote,
		Constraints:    pf.Constraints,
		Policies:       pf.Policies,
		NextSteps:      make(map[types.Priority]string),
		ExtraActions:   make(map[types.Priority][]string),
	}
	for tier, step := range pf.NextSteps {
		prio, err := types.ParsePriority(tier)
		if err != nil {
			return Profile{}, fmt.Errorf("profile %s next_steps: %w", pf.Name, err)
		}
		p.NextSteps[prio] = step
	}

	// "all" entries come first so tier-specific actions follow them.
	if common, ok := pf.ExtraActions[tierAll]; ok {
		for _, prio := range types.Priorities() {
			p.ExtraActions[prio] = append(p.ExtraActions[prio], common...)
		}
	}
	for tier, actions := range pf.ExtraActions {
		if tier == tierAll {
			continue
		}
		prio, err := types.ParsePriority(tier)
		if err != nil {
			return Profile{}, fmt.Errorf("profile %s extra_actions: %w", pf.Name, err)
		}
		p.ExtraActions[prio] = append(p.ExtraActions[prio], actions...)
	}
	return p, nil
}

// Version returns the policy table version shared by all profiles.
func (r *Registry) Version() string {
	return r.version
}

// Lookup returns the profile for tag. An empty or unrecognised tag is an
// *UnknownEnvironmentProfileError; there is no default profile.
func (r *Registry) Lookup(tag types.EnvironmentType) (Profile, error) {
	key := types.EnvironmentType(strings.TrimSpace(string(tag)))
	p, ok := r.profiles[key]
	if !ok {
		return Profile{}, &types.UnknownEnvironmentProfileError{Tag: string(tag)}
	}
	return p, nil
}

// Names lists the registered environment tags in sorted order.
func (r *Registry) Names() []types.EnvironmentType {
	names := make([]types.EnvironmentType, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// MarshalYAML renders the registry back into the on-disk document layout.
func (r *Registry) MarshalYAML() (any, error) {
	doc := profilesFile{Version: r.version}
	for _, name := range r.Names() {
		p := r.profiles[name]
		pf := profileFile{
			Name:           p.Name,
			GuidanceNote:   p.GuidanceNote,
			EscalationNote: p.EscalationNote,
			AdaptationNote: p.AdaptationNote,
			Constraints:    p.Constraints,
			Policies:       p.Policies,
			NextSteps:      make(map[string]string, len(p.NextSteps)),
			ExtraActions:   make(map[string][]string, len(p.ExtraActions)),
		}
		for tier, step := range p.NextSteps {
			pf.NextSteps[tier.String()] = step
		}
		for tier, actions := range p.ExtraActions {
			pf.ExtraActions[tier.String()] = actions
		}
		doc.Profiles = append(doc.Profiles, pf)
	}
	return doc, nil
}
