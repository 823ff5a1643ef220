package internal

import (
	"errors"
	"reflect"
	"testing"
)

func TestPrimaryModelAndNames(t *testing.T) {
	if _, ok := PrimaryModel(nil); ok {
		t.Error("PrimaryModel(nil) reported a model")
	}

	models := CreateTestModels(2)
	models[1].Name = ""
	first, ok := PrimaryModel(models)
	if !ok || first.Name != "A" {
		t.Errorf("PrimaryModel = %+v, %v", first, ok)
	}
	if got := ModelNames(models); !reflect.DeepEqual(got, []string{"A", "Model 2"}) {
		t.Errorf("ModelNames = %v", got)
	}
}

func TestValidateModels(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(models []ModelConfiguration) []ModelConfiguration
		wantErr   bool
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(m []ModelConfiguration) []ModelConfiguration { return m },
		},
		{
			name:    "empty",
			mutate:  func(m []ModelConfiguration) []ModelConfiguration { return nil },
			wantErr: true,
		},
		{
			name: "unknown model value",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[0].Value = "someone/else"
				return m
			},
			wantErr:   true,
			wantField: "value",
		},
		{
			name: "temperature out of range",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[1].Temperature = 2.5
				return m
			},
			wantErr:   true,
			wantField: "temperature",
		},
		{
			name: "zero max tokens",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[0].MaxTokens = 0
				return m
			},
			wantErr:   true,
			wantField: "maxTokens",
		},
		{
			name: "no history source",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[0].HistorySource = HistorySource{}
				return m
			},
			wantErr:   true,
			wantField: "historySource",
		},
		{
			name: "reads itself",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[0].HistorySource.Models = []int{0}
				return m
			},
			wantErr:   true,
			wantField: "historySource",
		},
		{
			name: "reads unknown model",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[0].HistorySource.Models = []int{9}
				return m
			},
			wantErr:   true,
			wantField: "historySource",
		},
		{
			name: "duplicate ids",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[1].ID = m[0].ID
				return m
			},
			wantErr:   true,
			wantField: "id",
		},
		{
			name: "one-way dependency",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[1].HistorySource.Models = []int{0}
				return m
			},
		},
		{
			name: "cycle",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[0].HistorySource.Models = []int{2}
				m[1].HistorySource.Models = []int{0}
				m[2].HistorySource.Models = []int{1}
				return m
			},
			wantErr:   true,
			wantField: "historySource",
		},
		{
			name: "examples without template",
			mutate: func(m []ModelConfiguration) []ModelConfiguration {
				m[0].Examples = []Example{{Inputs: map[string]string{"q": "1"}}}
				return m
			},
			wantErr:   true,
			wantField: "examples",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModels(tt.mutate(CreateTestModels(3)))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateModels() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantField == "" {
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %v is not a ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestValidateModels_Empty(t *testing.T) {
	if err := ValidateModels(nil); !errors.Is(err, ErrNoModels) {
		t.Errorf("ValidateModels(nil) = %v, want ErrNoModels", err)
	}
}

func TestFindHistoryCycle(t *testing.T) {
	models := CreateTestModels(3)
	if cycle := FindHistoryCycle(models); cycle != nil {
		t.Errorf("independent models reported cycle %v", cycle)
	}

	models[0].HistorySource.Models = []int{1}
	models[1].HistorySource.Models = []int{0}
	cycle := FindHistoryCycle(models)
	if len(cycle) != 3 || cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle = %v, want a closed path of two models", cycle)
	}
}

func TestHistoryDependencies(t *testing.T) {
	models := CreateTestModels(3)
	models[2].HistorySource.Models = []int{1, 0}

	deps := HistoryDependencies(models)
	if !reflect.DeepEqual(deps[2], []int{0, 1}) {
		t.Errorf("deps[2] = %v", deps[2])
	}
	if len(deps[0]) != 0 {
		t.Errorf("deps[0] = %v", deps[0])
	}
}

func TestValidateModel_TemplateExamples(t *testing.T) {
	models := CreateTestModels(1)
	m := models[0]
	m.SystemPrompt = `{"task": "classify", "inputs": {"text": ""}, "outputs": {"label": ""}}`
	m.Examples = []Example{{Inputs: map[string]string{"text": "hi"}, Outputs: map[string]string{"label": "greeting"}}}
	if err := ValidateModel(m, models); err != nil {
		t.Errorf("valid examples rejected: %v", err)
	}

	m.Examples[0].Outputs["score"] = "1"
	if err := ValidateModel(m, models); err == nil {
		t.Error("undeclared output field accepted")
	}
}
