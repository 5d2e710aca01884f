// Package prompts loads the per-stage prompt catalog and renders its
// templates. The catalog ships embedded and can be overridden key by key from
// a YAML file named by paths.prompts_path.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"inkwell/internal/services"
)

//go:embed prompts.yaml
var defaultCatalog []byte

// Entry is one stage's prompt definition.
type Entry struct {
	System      string   `yaml:"system"`
	User        string   `yaml:"user"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

// Rendered is a prompt ready to send.
type Rendered struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Defaults fill in sampling settings an entry leaves unset.
type Defaults struct {
	MaxTokens   int
	Temperature float64
}

// Catalog holds parsed templates keyed by stage name.
type Catalog struct {
	entries   map[string]Entry
	templates map[string]*template.Template
	defaults  Defaults
}

// Load parses the embedded catalog and applies overridePath when set.
func Load(overridePath string, defaults Defaults) (*Catalog, error) {
	entries, err := parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded prompt catalog: %w", err)
	}
	if overridePath = strings.TrimSpace(overridePath); overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "prompts", "read override", overridePath, err)
		}
		overrides, err := parse(data)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "prompts", "parse override", overridePath, err)
		}
		for name, override := range overrides {
			entries[name] = merge(entries[name], override)
		}
	}

	catalog := &Catalog{
		entries:   entries,
		templates: make(map[string]*template.Template, len(entries)),
		defaults:  defaults,
	}
	for name, entry := range entries {
		tmpl, err := template.New(name).Option("missingkey=zero").Parse(entry.User)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "prompts", "parse template", name, err)
		}
		catalog.templates[name] = tmpl
	}
	return catalog, nil
}

// Has reports whether the catalog defines name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Names lists the catalog keys in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Render executes the user template for name against data.
func (c *Catalog) Render(name string, data any) (Rendered, error) {
	entry, ok := c.entries[name]
	if !ok {
		return Rendered{}, services.Wrap(services.ErrConfiguration, "prompts", "render", "no prompt named "+name, nil)
	}
	var buf bytes.Buffer
	if err := c.templates[name].Execute(&buf, data); err != nil {
		return Rendered{}, services.Wrap(services.ErrValidation, "prompts", "render", name, err)
	}
	out := Rendered{
		System:      strings.TrimSpace(entry.System),
		User:        strings.TrimSpace(buf.String()),
		MaxTokens:   entry.MaxTokens,
		Temperature: c.defaults.Temperature,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = c.defaults.MaxTokens
	}
	if entry.Temperature != nil {
		out.Temperature = *entry.Temperature
	}
	return out, nil
}

func parse(data []byte) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func merge(base, override Entry) Entry {
	if strings.TrimSpace(override.System) != "" {
		base.System = override.System
	}
	if strings.TrimSpace(override.User) != "" {
		base.User = override.User
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	return base
}
