package internal

import (
	"errors"
	"fmt"
	"sort"
)

// PrimaryModel returns the first configured model.
func PrimaryModel(models []ModelConfiguration) (ModelConfiguration, bool) {
	if len(models) == 0 {
		return ModelConfiguration{}, false
	}
	return models[0], true
}

// ModelByID finds a model and its position in the list.
func ModelByID(models []ModelConfiguration, id int) (ModelConfiguration, int, bool) {
	for i, m := range models {
		if m.ID == id {
			return m, i, true
		}
	}
	return ModelConfiguration{}, -1, false
}

// ModelNames returns the display names in configured order.
func ModelNames(models []ModelConfiguration) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.DisplayName(i)
	}
	return names
}

// HistoryDependencies maps each model id to the ids whose output it consumes.
func HistoryDependencies(models []ModelConfiguration) map[int][]int {
	deps := make(map[int][]int, len(models))
	for _, m := range models {
		ids := append([]int(nil), m.HistorySource.Models...)
		sort.Ints(ids)
		deps[m.ID] = ids
	}
	return deps
}

// FindHistoryCycle returns the ids along a cycle in the history-source graph,
// starting and ending with the same id, or nil if the graph is acyclic.
func FindHistoryCycle(models []ModelConfiguration) []int {
	deps := HistoryDependencies(models)

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[int]int, len(deps))
	var stack []int
	var cycle []int

	var visit func(id int) bool
	visit = func(id int) bool {
		state[id] = onStack
		stack = append(stack, id)
		for _, next := range deps[id] {
			switch state[next] {
			case onStack:
				for i, s := range stack {
					if s == next {
						cycle = append(append([]int(nil), stack[i:]...), next)
						return true
					}
				}
			case unvisited:
				if _, known := deps[next]; known && visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, m := range models {
		if state[m.ID] == unvisited && visit(m.ID) {
			return cycle
		}
	}
	return nil
}

// ValidateModel checks a single configuration against the set it belongs to.
func ValidateModel(m ModelConfiguration, models []ModelConfiguration) error {
	invalid := func(field string, format string, args ...interface{}) error {
		return &ValidationError{ModelID: m.ID, Field: field, Err: fmt.Errorf(format, args...)}
	}

	if m.Value == "" {
		return invalid("value", "model identifier is required")
	}
	if _, ok := LookupCatalog(m.Value); !ok {
		return invalid("value", "%q is not in the model catalog", m.Value)
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return invalid("temperature", "%v not in [0, 2]", m.Temperature)
	}
	if m.TopP < 0 || m.TopP > 1 {
		return invalid("topP", "%v not in [0, 1]", m.TopP)
	}
	if m.MinP < 0 || m.MinP > 1 {
		return invalid("minP", "%v not in [0, 1]", m.MinP)
	}
	if m.MaxTokens <= 0 {
		return invalid("maxTokens", "%d must be positive", m.MaxTokens)
	}
	if m.HistorySource.History < HistoryAll {
		return invalid("historySource", "history count %d is negative", m.HistorySource.History)
	}
	if !m.HistorySource.Enabled() {
		return invalid("historySource", "at least one history source must be enabled")
	}
	for _, id := range m.HistorySource.Models {
		if id == m.ID {
			return invalid("historySource", "a model cannot include its own output")
		}
		if _, _, ok := ModelByID(models, id); !ok {
			return invalid("historySource", "unknown model id %d", id)
		}
	}
	if len(m.Examples) > 0 {
		tmpl, ok := ParseTemplate(m.SystemPrompt)
		if !ok {
			return invalid("examples", "few-shot examples require a structured system prompt with inputs/outputs")
		}
		if err := tmpl.ValidateExamples(m.Examples); err != nil {
			return &ValidationError{ModelID: m.ID, Field: "examples", Err: err}
		}
	}
	return nil
}

// ValidateModels checks the full set before a send is permitted.
func ValidateModels(models []ModelConfiguration) error {
	if len(models) == 0 {
		return ErrNoModels
	}

	seen := make(map[int]bool, len(models))
	for _, m := range models {
		if seen[m.ID] {
			return &ValidationError{ModelID: m.ID, Field: "id", Err: errors.New("duplicate model id")}
		}
		seen[m.ID] = true
	}

	for _, m := range models {
		if err := ValidateModel(m, models); err != nil {
			return err
		}
	}

	if cycle := FindHistoryCycle(models); cycle != nil {
		return &ValidationError{
			ModelID: cycle[0],
			Field:   "historySource",
			Err:     fmt.Errorf("models consume each other's output: %v", cycle),
		}
	}
	return nil
}
