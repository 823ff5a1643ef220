package internal

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// HistoryCount selects how many prior turns a model receives.
// Zero disables raw history, HistoryAll sends everything.
type HistoryCount int

// HistoryAll requests the full turn history.
const HistoryAll HistoryCount = -1

const historyAllToken = "all"

// ParseHistoryCount parses "all", "off" or a positive integer.
func ParseHistoryCount(s string) (HistoryCount, error) {
	switch s {
	case historyAllToken:
		return HistoryAll, nil
	case "", "off", "0":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid history count %q (want a positive number or \"all\")", s)
	}
	return HistoryCount(n), nil
}

func (h HistoryCount) String() string {
	switch {
	case h == HistoryAll:
		return historyAllToken
	case h <= 0:
		return "off"
	default:
		return strconv.Itoa(int(h))
	}
}

func (h HistoryCount) MarshalJSON() ([]byte, error) {
	if h == HistoryAll {
		return json.Marshal(historyAllToken)
	}
	return json.Marshal(int(h))
}

func (h *HistoryCount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := ParseHistoryCount(s)
		if err != nil {
			return err
		}
		*h = v
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("history must be a number or %q: %w", historyAllToken, err)
	}
	*h = HistoryCount(n)
	return nil
}

func (h HistoryCount) MarshalYAML() (interface{}, error) {
	if h == HistoryAll {
		return historyAllToken, nil
	}
	return int(h), nil
}

func (h *HistoryCount) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseHistoryCount(value.Value)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// HistorySource selects the context a model consumes
type HistorySource struct {
	History HistoryCount `yaml:"history,omitempty"`
	Prompt  bool         `yaml:"prompt,omitempty"`
	Models  []int        `yaml:"models,omitempty"`
}

type wireHistorySource struct {
	History HistoryCount `json:"history,omitempty"`
	Prompt  int          `json:"prompt,omitempty"`
	Models  []int        `json:"models,omitempty"`
}

func (h HistorySource) MarshalJSON() ([]byte, error) {
	w := wireHistorySource{History: h.History, Models: h.Models}
	if h.Prompt {
		w.Prompt = 1
	}
	return json.Marshal(w)
}

func (h *HistorySource) UnmarshalJSON(data []byte) error {
	var w wireHistorySource
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*h = HistorySource{History: w.History, Prompt: w.Prompt != 0, Models: w.Models}
	return nil
}

// Enabled reports whether at least one context source is selected.
func (h HistorySource) Enabled() bool {
	return h.History != 0 || h.Prompt || len(h.Models) > 0
}

// Example is a few-shot pair keyed by the template's declared fields
type Example struct {
	Inputs  map[string]string `json:"inputs" yaml:"inputs"`
	Outputs map[string]string `json:"outputs" yaml:"outputs"`
}

// ModelConfiguration is one participant of a multi-model chat
type ModelConfiguration struct {
	ID            int           `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Value         string        `json:"value" yaml:"value"`
	SystemPrompt  string        `json:"systemPrompt" yaml:"system_prompt,omitempty"`
	Temperature   float64       `json:"temperature" yaml:"temperature"`
	TopP          float64       `json:"topP" yaml:"top_p"`
	MinP          float64       `json:"minP" yaml:"min_p"`
	MaxTokens     int           `json:"maxTokens" yaml:"max_tokens"`
	HistorySource HistorySource `json:"historySource" yaml:"history_source"`
	Examples      []Example     `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Defaults used when a model is added without explicit parameters.
const (
	DefaultTemperature  = 0.7
	DefaultTopP         = 1.0
	DefaultMinP         = 0.0
	DefaultMaxTokens    = 16384
	DefaultSystemPrompt = "You are a helpful AI assistant."
)

// NewModelConfiguration returns a configuration with the default sampling parameters.
// The id is left at zero; the Store assigns it.
func NewModelConfiguration(name, value string) ModelConfiguration {
	return ModelConfiguration{
		Name:          name,
		Value:         value,
		SystemPrompt:  DefaultSystemPrompt,
		Temperature:   DefaultTemperature,
		TopP:          DefaultTopP,
		MinP:          DefaultMinP,
		MaxTokens:     DefaultMaxTokens,
		HistorySource: HistorySource{History: HistoryAll},
	}
}

// Header is the label the demultiplexer seeds each buffer with.
// index is the model's position in the configured list.
func (m ModelConfiguration) Header(index int) string {
	return fmt.Sprintf("**%s:**\n", m.DisplayName(index))
}

// DisplayName falls back to "Model N" for unnamed configurations.
func (m ModelConfiguration) DisplayName(index int) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("Model %d", index+1)
}

// CatalogEntry is one selectable model
type CatalogEntry struct {
	Label string
	Value string
}

// Catalog is the fixed list of model identifiers the inference backend serves.
var Catalog = []CatalogEntry{
	{Label: "DeepSeek-R1", Value: "deepseek-ai/DeepSeek-R1"},
	{Label: "DeepSeek-V3", Value: "deepseek-ai/DeepSeek-V3-0324"},
	{Label: "Qwen3-235B", Value: "Qwen/Qwen3-235B-A22B"},
	{Label: "Llama-4-Maverick", Value: "chutesai/Llama-4-Maverick-17B-128E-Instruct-FP8"},
	{Label: "Mistral-Small-3.1", Value: "chutesai/Mistral-Small-3.1-24B-Instruct-2503"},
}

// LookupCatalog resolves either a label or a wire value to its catalog entry.
func LookupCatalog(s string) (CatalogEntry, bool) {
	for _, e := range Catalog {
		if e.Value == s || e.Label == s {
			return e, true
		}
	}
	return CatalogEntry{}, false
}
