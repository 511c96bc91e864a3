// Package config loads the narrow slice of processor-group configuration
// the core actually consumes (§6.2): library roots and assembler options.
// Authoring the full proc_grps.json/pgm_conf.json/.bridge.json schema is out
// of scope (§1); this package only reads the fields that feed COPY/macro
// library resolution and the preprocessor pipeline selection.
package config

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// PreprocessorName names one of the stages §4.H recognizes.
type PreprocessorName string

const (
	PreprocessorDB2  PreprocessorName = "DB2"
	PreprocessorCICS PreprocessorName = "CICS"
)

// ProcessorGroup is the narrow slice of a proc_grps.json entry the core
// reads: library roots to search for COPY/macro members, assembler options,
// and the preprocessor stage pipeline.
type ProcessorGroup struct {
	Name          string             `json:"name"`
	Libs          []string           `json:"libs"`
	AsmOptions    map[string]string  `json:"asmOptions"`
	Preprocessors []PreprocessorName `json:"preprocessors"`
}

// Document is the relevant slice of proc_grps.json: a named list of groups.
type Document struct {
	Groups []ProcessorGroup `json:"pgroups"`
}

// substVar matches `${workspaceFolder}` or `${config:some.setting.path}`.
var substVar = regexp.MustCompile(`\$\{(workspaceFolder|config:[^}]+)\}`)

// Substitution records one `${...}` token resolved while loading a
// document, so a later settings change can invalidate exactly the affected
// groups (§6.2 "substitution targets are captured").
type Substitution struct {
	Group    string
	Field    string
	Token    string
	Resolved string
}

// Loader reads processor-group documents from an injectable filesystem
// (afero.Fs, so library roots can be backed by an in-memory FS in tests
// rather than assuming a real OS filesystem, per §9's per-analysis-context
// principle) and resolves `${...}` substitutions against a viper-backed
// settings source (`${config:setting.path}`) plus a fixed workspace root
// (`${workspaceFolder}`).
type Loader struct {
	fs            afero.Fs
	settings      *viper.Viper
	workspaceRoot string

	Substitutions []Substitution
}

// NewLoader builds a Loader. settings may be nil, in which case
// `${config:...}` tokens resolve to the empty string and are still recorded
// as substitutions (so callers can see they were present but unresolved).
func NewLoader(fs afero.Fs, settings *viper.Viper, workspaceRoot string) *Loader {
	if settings == nil {
		settings = viper.New()
	}
	return &Loader{fs: fs, settings: settings, workspaceRoot: workspaceRoot}
}

// Load reads and parses the processor-group document at path, substituting
// `${workspaceFolder}`/`${config:...}` tokens in every Libs entry.
func (l *Loader) Load(path string) (*Document, error) {
	raw, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	for gi := range doc.Groups {
		g := &doc.Groups[gi]
		for li := range g.Libs {
			g.Libs[li] = l.substitute(g.Name, "libs", g.Libs[li])
		}
		for k, v := range g.AsmOptions {
			g.AsmOptions[k] = l.substitute(g.Name, "asmOptions."+k, v)
		}
	}
	return &doc, nil
}

// substitute resolves every `${...}` token in value, recording each
// resolution as a Substitution for later invalidation tracking.
func (l *Loader) substitute(group, field, value string) string {
	return substVar.ReplaceAllStringFunc(value, func(token string) string {
		inner := token[2 : len(token)-1] // strip ${ and }
		var resolved string
		switch {
		case inner == "workspaceFolder":
			resolved = l.workspaceRoot
		case len(inner) > len("config:") && inner[:len("config:")] == "config:":
			key := inner[len("config:"):]
			resolved = l.settings.GetString(key)
		}
		l.Substitutions = append(l.Substitutions, Substitution{Group: group, Field: field, Token: token, Resolved: resolved})
		return resolved
	})
}

// AffectedGroups returns the set of group names whose configuration
// referenced settingKey via `${config:settingKey}`, so a settings change
// event can invalidate exactly those groups (§6.2).
func (l *Loader) AffectedGroups(settingKey string) []string {
	seen := make(map[string]bool)
	var out []string
	token := "${config:" + settingKey + "}"
	for _, s := range l.Substitutions {
		if s.Token == token && !seen[s.Group] {
			seen[s.Group] = true
			out = append(out, s.Group)
		}
	}
	return out
}
