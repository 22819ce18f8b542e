package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// SecretsFile is the file next to a device document that backs !secret tags.
const SecretsFile = "secrets.yaml"

// Node is a raw configuration subtree as produced by the YAML parser. Values
// are scalars, nested Nodes or []any sequences.
type Node map[string]any

// Clone returns a deep copy of the node so callers can hand it to a compile
// pass without sharing mutable state.
func (n Node) Clone() Node {
	if n == nil {
		return nil
	}
	out := make(Node, len(n))
	for k, v := range n {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Node:
		return val.Clone()
	case map[string]any:
		return Node(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	default:
		return val
	}
}

// Has reports whether key is present, even with an empty value.
func (n Node) Has(key string) bool {
	_, ok := n[key]
	return ok
}

// Source captures where a document or component was declared.
type Source struct {
	File string `yaml:"-"`
	Line int    `yaml:"-"`
}

func (s Source) String() string {
	switch {
	case s.File != "" && s.Line > 0:
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	case s.File != "":
		return s.File
	case s.Line > 0:
		return fmt.Sprintf("line %d", s.Line)
	default:
		return ""
	}
}

// PlatformConfig selects the build target.
type PlatformConfig struct {
	Family    string `yaml:"family"`
	Variant   string `yaml:"variant,omitempty"`
	Framework string `yaml:"framework,omitempty"`
}

// PolicyConfig overrides the expressions deciding which framework and
// platform combinations get the managed radio stack.
type PolicyConfig struct {
	Applicable string `yaml:"applicable,omitempty"`
	Managed    string `yaml:"managed,omitempty"`
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates compiler logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format,omitempty"`
	Output string     `yaml:"output,omitempty"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig configures telemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"`
}

// Component is a top-level document key handed to a compile unit.
type Component struct {
	Name   string
	Node   Node
	Source Source
}

// Document is a parsed device document. Ambient sections are decoded into
// typed structs; every other top-level key is a component subtree.
type Document struct {
	Name       string
	Platform   PlatformConfig
	Logging    LoggingConfig
	Telemetry  TelemetryConfig
	Policy     PolicyConfig
	Components []Component
	Source     Source
	Files      []string
}

// Component looks up a component subtree by its top-level key.
func (d *Document) Component(name string) (Component, bool) {
	if d == nil {
		return Component{}, false
	}
	for _, c := range d.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Load reads a device document from a file, or from every YAML file of a
// directory in lexical order.
func Load(path string) (*Document, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if info.IsDir() {
		return loadDir(abs)
	}
	secrets, err := loadSecrets(filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	return loadFile(abs, secrets)
}

// Parse decodes a document held in memory. file is only used for diagnostics.
func Parse(raw []byte, file string) (*Document, error) {
	return parse(raw, file, nil)
}

func loadFile(path string, secrets map[string]*yaml.Node) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	doc, err := parse(raw, path, secrets)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func loadDir(path string) (*Document, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	secrets, err := loadSecrets(path)
	if err != nil {
		return nil, err
	}

	result := &Document{Source: Source{File: path}}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == SecretsFile {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		doc, err := loadFile(filepath.Join(path, name), secrets)
		if err != nil {
			return nil, err
		}
		if err := mergeDocument(result, doc); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func parse(raw []byte, file string, secrets map[string]*yaml.Node) (*Document, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", file, err)
	}
	doc := &Document{Source: Source{File: file}}
	if file != "" {
		doc.Files = []string{file}
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return doc, nil
	}
	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %s: document root must be a mapping", file)
	}
	if err := resolveSecretTags(root, secrets); err != nil {
		return nil, fmt.Errorf("config %s: %w", file, err)
	}

	seen := make(map[string]int)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, value := root.Content[i], root.Content[i+1]
		if keyNode == nil || keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config %s: top-level keys must be scalars", file)
		}
		key := strings.TrimSpace(keyNode.Value)
		if line, dup := seen[key]; dup {
			return nil, fmt.Errorf("config %s: duplicate key %q at line %d (first declared at line %d)", file, key, keyNode.Line, line)
		}
		seen[key] = keyNode.Line

		var err error
		switch key {
		case "name":
			err = value.Decode(&doc.Name)
			if err == nil && doc.Name != "" {
				err = ensureIdentifier(strings.ReplaceAll(doc.Name, "-", "_"), "node name")
			}
		case "platform":
			err = value.Decode(&doc.Platform)
		case "logging":
			err = value.Decode(&doc.Logging)
		case "telemetry":
			err = value.Decode(&doc.Telemetry)
		case "policy":
			err = value.Decode(&doc.Policy)
		default:
			var comp Component
			comp, err = decodeComponent(key, value)
			comp.Source = Source{File: file, Line: keyNode.Line}
			doc.Components = append(doc.Components, comp)
		}
		if err != nil {
			return nil, fmt.Errorf("config %s: %s (line %d): %w", file, key, keyNode.Line, err)
		}
	}
	return doc, nil
}

func decodeComponent(key string, value *yaml.Node) (Component, error) {
	comp := Component{Name: key, Node: Node{}}
	if value == nil || value.Tag == "!!null" {
		return comp, nil
	}
	if value.Kind != yaml.MappingNode {
		return comp, fmt.Errorf("component %q must be a mapping", key)
	}
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return comp, err
	}
	comp.Node = normalizeMap(raw)
	return comp, nil
}

// normalizeMap converts nested map[string]any values into Node so consumers
// only have to handle a single mapping type.
func normalizeMap(m map[string]any) Node {
	out := make(Node, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeMap(val)
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	default:
		return val
	}
}

func mergeDocument(dst, src *Document) error {
	if src.Name != "" {
		if dst.Name != "" && dst.Name != src.Name {
			return fmt.Errorf("%s: conflicting node names %q and %q", src.Source, dst.Name, src.Name)
		}
		dst.Name = src.Name
	}
	if src.Platform.Family != "" {
		dst.Platform = src.Platform
	}
	if src.Logging.Level != "" || src.Logging.Format != "" || src.Logging.Output != "" || src.Logging.Loki.Enabled {
		dst.Logging = src.Logging
	}
	if src.Telemetry.Enabled || src.Telemetry.Provider != "" {
		dst.Telemetry = src.Telemetry
	}
	if src.Policy.Applicable != "" {
		dst.Policy.Applicable = src.Policy.Applicable
	}
	if src.Policy.Managed != "" {
		dst.Policy.Managed = src.Policy.Managed
	}
	for _, comp := range src.Components {
		if existing, ok := dst.Component(comp.Name); ok {
			return fmt.Errorf("component %q declared in %s and %s", comp.Name, existing.Source, comp.Source)
		}
		dst.Components = append(dst.Components, comp)
	}
	dst.Files = append(dst.Files, src.Files...)
	return nil
}

func loadSecrets(dir string) (map[string]*yaml.Node, error) {
	path := filepath.Join(dir, SecretsFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read secrets %s: %w", path, err)
	}
	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("unmarshal secrets %s: %w", path, err)
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return nil, nil
	}
	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("secrets file %s must contain a mapping", path)
	}
	result := make(map[string]*yaml.Node)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := root.Content[i]
		if keyNode == nil || keyNode.Kind != yaml.ScalarNode {
			continue
		}
		name := strings.TrimSpace(keyNode.Value)
		if name == "" {
			continue
		}
		result[name] = root.Content[i+1]
	}
	return result, nil
}

// resolveSecretTags replaces `!secret name` scalars with the referenced
// value from the secrets file.
func resolveSecretTags(node *yaml.Node, secrets map[string]*yaml.Node) error {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode, yaml.MappingNode:
		for _, child := range node.Content {
			if err := resolveSecretTags(child, secrets); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if node.Tag != "!secret" {
			return nil
		}
		key := strings.TrimSpace(node.Value)
		if key == "" {
			return fmt.Errorf("empty secret reference at line %d", node.Line)
		}
		value, ok := secrets[key]
		if !ok || value == nil {
			return fmt.Errorf("unknown secret %q at line %d", key, node.Line)
		}
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("secret %q must be a scalar", key)
		}
		node.Tag = value.Tag
		node.Style = value.Style
		node.Value = value.Value
	}
	return nil
}

func ensureIdentifier(value, kind string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", kind)
	}
	for idx, r := range trimmed {
		if idx == 0 && unicode.IsDigit(r) {
			return fmt.Errorf("%s %q must not start with a digit", kind, trimmed)
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return fmt.Errorf("%s %q contains invalid character %q", kind, trimmed, r)
		}
	}
	return nil
}
