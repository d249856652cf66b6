package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelNotFound is returned by ModelTable.Resolve for unknown names.
var ErrModelNotFound = errors.New("model not found in configuration")

// Model maps a display name to a hosted model identifier.
type Model struct {
	Name string `yaml:"name" json:"name"`
	ID   string `yaml:"id" json:"id"`
}

// ModelTable is the ordered list of selectable models. The first entry is
// the default selection.
type ModelTable []Model

// DefaultModels returns the built-in model table.
func DefaultModels() ModelTable {
	return ModelTable{
		{Name: "Llama 3.2 : 1B", ID: "meta-llama/Llama-3.2-1B-Instruct"},
		{Name: "Phi-3.5", ID: "microsoft/Phi-3.5-mini-instruct"},
		{Name: "Gemma 2 : 2B", ID: "google/gemma-1.1-2b-it"},
		{Name: "Gemma 3 : 27B", ID: "google/gemma-3-27b-it"},
		{Name: "DeepSeek-V3-0324", ID: "deepseek-ai/DeepSeek-V3-0324"},
		{Name: "DeepSeek-R1", ID: "deepseek-ai/DeepSeek-R1"},
	}
}

// Resolve returns the identifier for name.
func (t ModelTable) Resolve(name string) (string, error) {
	for _, m := range t {
		if m.Name == name && m.ID != "" {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrModelNotFound, name)
}

// Names returns the display names in table order.
func (t ModelTable) Names() []string {
	names := make([]string, len(t))
	for i, m := range t {
		names[i] = m.Name
	}
	return names
}

// Default returns the first model name, or "" for an empty table.
func (t ModelTable) Default() string {
	if len(t) == 0 {
		return ""
	}
	return t[0].Name
}

// Validate enforces that every name is unique and resolves to a non-empty id.
func (t ModelTable) Validate() error {
	if len(t) == 0 {
		return errors.New("model table is empty")
	}
	seen := make(map[string]struct{}, len(t))
	for i, m := range t {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("model %d has no name", i)
		}
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("model %q has no identifier", m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("model %q listed twice", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}
