package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

var (
	modelName       string
	modelValue      string
	modelPrompt     string
	modelPromptFile string
	modelTemp       float64
	modelTopP       float64
	modelMinP       float64
	modelMaxTokens  int
	modelHistory    string
	modelUsePrompt  bool
	modelReads      []int

	validateRemote bool
	validateRepair bool
)

// modelsCmd groups the model set commands
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the models a chat is sent to",
	Long: `Manage the model set stored in the models file.

Every message is answered by each model in the order listed here. A model's
history source selects what context it sees: the last N chat turns ("all"
for every turn), the current prompt, and the replies of other models.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return modelsListCmd.RunE(cmd, args)
	},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured models",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := loadModelStore()
		if err != nil {
			return err
		}
		displayModels(cmd.OutOrStdout(), store.Models())
		return nil
	},
}

var modelsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a model",
	Example: `  multichat models add --name A --value DeepSeek-R1
  multichat models add --name Critic --value Qwen3-235B --history 0 --prompt --read 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, store, err := loadModelStore()
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("value") {
			return fmt.Errorf("--value is required (see 'multichat models catalog')")
		}

		m := internal.NewModelConfiguration(modelName, "")
		if err := applyModelFlags(cmd, &m); err != nil {
			return err
		}
		added := store.AddModel(m)
		if err := internal.ValidateModels(store.Models()); err != nil {
			return err
		}
		if err := manager.SaveFrom(store); err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Added model %d (%s)", added.ID, added.DisplayName(len(store.Models())-1)))
		return nil
	},
}

var modelsSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Change a model's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid model id %q", args[0])
		}
		manager, store, err := loadModelStore()
		if err != nil {
			return err
		}
		m, _, ok := internal.ModelByID(store.Models(), id)
		if !ok {
			return fmt.Errorf("model %d not found", id)
		}
		if err := applyModelFlags(cmd, &m); err != nil {
			return err
		}
		if err := store.UpdateModel(m); err != nil {
			return err
		}
		if err := internal.ValidateModels(store.Models()); err != nil {
			return err
		}
		if err := manager.SaveFrom(store); err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Updated model %d", id))
		return nil
	},
}

var modelsRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a model",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid model id %q", args[0])
		}
		manager, store, err := loadModelStore()
		if err != nil {
			return err
		}
		if err := store.RemoveModel(id); err != nil {
			return err
		}
		if err := manager.SaveFrom(store); err != nil {
			return err
		}
		internal.PrintSuccess(fmt.Sprintf("Removed model %d", id))
		if len(store.Models()) == 0 {
			internal.PrintWarning("No models left; add one before sending")
		}
		return nil
	},
}

var modelsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the model set",
	Long: `Check every model's parameters, history sources and templates.

--repair fixes malformed structured system prompts in place. --remote also
submits each structured prompt to the backend's validator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, store, err := loadModelStore()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if validateRepair {
			repaired := 0
			for _, m := range store.Models() {
				if !strings.HasPrefix(strings.TrimSpace(m.SystemPrompt), "{") {
					continue
				}
				if json.Valid([]byte(m.SystemPrompt)) {
					continue
				}
				fixed, err := internal.RepairTemplate(m.SystemPrompt)
				if err != nil {
					internal.PrintWarning(fmt.Sprintf("Model %d: %v", m.ID, err))
					continue
				}
				m.SystemPrompt = fixed
				if err := store.UpdateModel(m); err != nil {
					return err
				}
				repaired++
			}
			if repaired > 0 {
				if err := manager.SaveFrom(store); err != nil {
					return err
				}
				internal.PrintSuccess(fmt.Sprintf("Repaired %d system prompt(s)", repaired))
			}
		}

		if err := internal.ValidateModels(store.Models()); err != nil {
			return err
		}

		if validateRemote {
			ctx := cmdContext(cmd)
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, m := range store.Models() {
				if _, ok := internal.ParseTemplate(m.SystemPrompt); !ok {
					continue
				}
				if err := a.client.ValidateJSON(ctx, json.RawMessage(m.SystemPrompt)); err != nil {
					return fmt.Errorf("model %d: %w", m.ID, err)
				}
			}
		}

		fmt.Fprintln(out, countStyle.Render(fmt.Sprintf("✓ %d model(s) valid", len(store.Models()))))
		return nil
	},
}

var modelsCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the model identifiers the backend serves",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, titleStyle.Render("Label")+"\t"+titleStyle.Render("Value")+"\t")
		for _, e := range internal.Catalog {
			_, _ = fmt.Fprintf(w, "%s\t%s\t\n", e.Label, idStyle.Render(e.Value))
		}
		return w.Flush()
	},
}

func loadModelStore() (*internal.ModelFileManager, *internal.Store, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}
	manager := internal.NewModelFileManager(cfg.Models.File)
	store := internal.NewStore()
	if err := manager.LoadInto(store); err != nil {
		return nil, nil, err
	}
	return manager, store, nil
}

// applyModelFlags copies the flags the user set onto m.
func applyModelFlags(cmd *cobra.Command, m *internal.ModelConfiguration) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		m.Name = modelName
	}
	if flags.Changed("value") {
		entry, ok := internal.LookupCatalog(modelValue)
		if !ok {
			return fmt.Errorf("unknown model %q (see 'multichat models catalog')", modelValue)
		}
		m.Value = entry.Value
	}
	if flags.Changed("system-prompt") {
		m.SystemPrompt = modelPrompt
	}
	if flags.Changed("system-prompt-file") {
		data, err := os.ReadFile(modelPromptFile)
		if err != nil {
			return fmt.Errorf("failed to read system prompt: %w", err)
		}
		m.SystemPrompt = string(data)
	}
	if flags.Changed("temperature") {
		m.Temperature = modelTemp
	}
	if flags.Changed("top-p") {
		m.TopP = modelTopP
	}
	if flags.Changed("min-p") {
		m.MinP = modelMinP
	}
	if flags.Changed("max-tokens") {
		m.MaxTokens = modelMaxTokens
	}
	if flags.Changed("history") {
		count, err := internal.ParseHistoryCount(modelHistory)
		if err != nil {
			return err
		}
		m.HistorySource.History = count
	}
	if flags.Changed("prompt") {
		m.HistorySource.Prompt = modelUsePrompt
	}
	if flags.Changed("read") {
		m.HistorySource.Models = append([]int(nil), modelReads...)
	}
	return nil
}

func displayModels(out io.Writer, models []internal.ModelConfiguration) {
	if len(models) == 0 {
		fmt.Fprintln(out, headerStyle.Render("🤖 No models configured"))
		return
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("🤖 %d model(s)", len(models))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Model")+"\t"+titleStyle.Render("Temp")+"\t"+titleStyle.Render("Context")+"\t")
	for i, m := range models {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\t\n", m.ID, m.DisplayName(i), idStyle.Render(m.Value), m.Temperature, describeHistory(m.HistorySource))
	}
	_ = w.Flush()
}

func describeHistory(h internal.HistorySource) string {
	var parts []string
	if h.History != 0 {
		parts = append(parts, "history:"+h.History.String())
	}
	if h.Prompt {
		parts = append(parts, "prompt")
	}
	for _, id := range h.Models {
		parts = append(parts, fmt.Sprintf("model:%d", id))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsAddCmd, modelsSetCmd, modelsRemoveCmd, modelsValidateCmd, modelsCatalogCmd)

	for _, c := range []*cobra.Command{modelsAddCmd, modelsSetCmd} {
		f := c.Flags()
		f.StringVar(&modelName, "name", "", "Display name")
		f.StringVar(&modelValue, "value", "", "Model identifier or catalog label")
		f.StringVar(&modelPrompt, "system-prompt", internal.DefaultSystemPrompt, "System prompt")
		f.StringVar(&modelPromptFile, "system-prompt-file", "", "Read the system prompt from a file")
		f.Float64Var(&modelTemp, "temperature", internal.DefaultTemperature, "Sampling temperature [0, 2]")
		f.Float64Var(&modelTopP, "top-p", internal.DefaultTopP, "Nucleus sampling [0, 1]")
		f.Float64Var(&modelMinP, "min-p", internal.DefaultMinP, "Minimum token probability [0, 1]")
		f.IntVar(&modelMaxTokens, "max-tokens", internal.DefaultMaxTokens, "Maximum tokens per reply")
		f.StringVar(&modelHistory, "history", "all", `Chat turns to include ("all" or a count)`)
		f.BoolVar(&modelUsePrompt, "prompt", false, "Include the current prompt")
		f.IntSliceVar(&modelReads, "read", nil, "Include replies of these model ids")
	}

	modelsValidateCmd.Flags().BoolVar(&validateRemote, "remote", false, "Also validate structured prompts with the backend")
	modelsValidateCmd.Flags().BoolVar(&validateRepair, "repair", false, "Repair malformed structured prompts")
}
