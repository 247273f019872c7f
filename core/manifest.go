package core

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/mod/semver"
)

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Manifest is the identity a module declares about itself. Name, Description
// and Version are required; the rest is optional.
type Manifest struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	Description string `json:"description" yaml:"description" toml:"description"`
	Version     string `json:"version" yaml:"version" toml:"version"`

	// DisplayName defaults to the capitalized name.
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty" toml:"display_name,omitempty"`
	// Entry names the registered factory; defaults to Name.
	Entry string `json:"entry,omitempty" yaml:"entry,omitempty" toml:"entry,omitempty"`
	// Sandbox requests an isolated execution environment (ATTACHING state).
	Sandbox bool `json:"sandbox,omitempty" yaml:"sandbox,omitempty" toml:"sandbox,omitempty"`
	// Capabilities lists the capability kinds the agent accepts (e.g. "retriever", "tool").
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty" toml:"capabilities,omitempty"`
}

// Validate checks the required fields and that the name matches the module
// directory the manifest was found in. An empty module skips the match check.
func (m *Manifest) Validate(module string) error {
	fail := func(field, reason string) error {
		return &ManifestError{Module: module, Field: field, Reason: reason}
	}
	switch {
	case m.Name == "":
		return fail("name", "missing")
	case strings.IndexFunc(m.Name, unicode.IsSpace) >= 0:
		return fail("name", "must not contain whitespace")
	case !nameRe.MatchString(m.Name):
		return fail("name", "must be an identifier")
	case module != "" && m.Name != module:
		return fail("name", "must equal module directory "+module)
	case strings.TrimSpace(m.Description) == "":
		return fail("description", "missing")
	case m.Version == "":
		return fail("version", "missing")
	case !IsSemver(m.Version):
		return fail("version", "not a semantic version: "+m.Version)
	}
	return nil
}

// EntryPoint returns the registry key used to resolve the implementation.
func (m *Manifest) EntryPoint() string {
	if m.Entry != "" {
		return m.Entry
	}
	return m.Name
}

// Title returns the display name, defaulting to the capitalized name.
func (m *Manifest) Title() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	if m.Name == "" {
		return ""
	}
	return strings.ToUpper(m.Name[:1]) + strings.ToLower(m.Name[1:])
}

// Accepts reports whether the manifest accepts capabilities of the given
// kind. An empty capability list accepts everything.
func (m *Manifest) Accepts(kind string) bool {
	if len(m.Capabilities) == 0 || kind == "" {
		return true
	}
	for _, c := range m.Capabilities {
		if c == kind {
			return true
		}
	}
	return false
}

// IsSemver reports whether v is a full semantic version ("1.2.3", an optional
// leading "v" is accepted).
func IsSemver(v string) bool {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	// semver.IsValid accepts the shorthands "v1" and "v1.2"; require all three parts.
	base := strings.SplitN(strings.SplitN(v, "-", 2)[0], "+", 2)[0]
	return semver.IsValid(v) && strings.Count(base, ".") == 2
}
