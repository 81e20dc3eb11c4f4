package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chemist/builddb/pkg/ops"
)

// manifest is the on-disk YAML shape for a builddb build: a flat list of
// named, shell-backed rules together with the other keys they depend on.
// It mirrors the teacher's apply.go manifest loader, narrowed to this
// engine's single collaborator (FileOps) instead of a full service spec.
type manifest struct {
	Rules []manifestRule `yaml:"rules"`
}

type manifestRule struct {
	Target     string   `yaml:"target"`
	Command    string   `yaml:"command"`
	Deps       []string `yaml:"deps"`
	TimeoutSec int      `yaml:"timeout_seconds"`
	// Phony marks a rule with no durable on-disk artifact (a
	// Makefile-style .PHONY target), so it always reruns and never
	// counts as validity drift. See ops.Rule.Phony.
	Phony bool `yaml:"phony"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Rules) == 0 {
		return nil, fmt.Errorf("manifest %s declares no rules", path)
	}
	for i, r := range m.Rules {
		if r.Target == "" {
			return nil, fmt.Errorf("manifest %s: rule %d has no target", path, i)
		}
		if r.Command == "" {
			return nil, fmt.Errorf("manifest %s: rule %q has no command", path, r.Target)
		}
	}
	return &m, nil
}

// toOpsRules flattens the manifest into the Rule slice FileOps expects.
func (m *manifest) toOpsRules() []ops.Rule {
	rules := make([]ops.Rule, len(m.Rules))
	for i, r := range m.Rules {
		timeout := time.Duration(r.TimeoutSec) * time.Second
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		rules[i] = ops.Rule{
			Target:  r.Target,
			Command: r.Command,
			Deps:    r.Deps,
			Timeout: timeout,
			Phony:   r.Phony,
		}
	}
	return rules
}

// targets returns every rule's target name, the default set of keys a
// bare `builddb build` (no explicit targets) asks for.
func (m *manifest) targets() []string {
	names := make([]string, len(m.Rules))
	for i, r := range m.Rules {
		names[i] = r.Target
	}
	return names
}
