// Package wizard interactively scaffolds study files.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/irt-tools/irtsim/internal/config"
)

// StudySpec holds all fields collected during the interactive wizard.
type StudySpec struct {
	Name         string
	Description  string
	Subjects     int
	Items        int
	Replications int
	Seed         uint64
	OnFailure    string
}

const studyYAMLTemplate = `name: {{ .Name }}
{{- if .Description }}
description: >
  {{ .Description }}
{{- end }}

design:
  subjects: {{ .Subjects }}
  items: {{ .Items }}

seed: {{ .Seed }}
replications: {{ .Replications }}

execution:
  workers: 1
  on_failure: {{ .OnFailure }}

estimators:
  - type: rasch
    name: rasch-mml
  - type: mixed
    name: glmm-agq
`

// RunStudyWizard runs an interactive huh form to collect a study
// definition. If initialName is non-empty, it pre-populates the name
// field.
func RunStudyWizard(in io.Reader, out io.Writer, initialName string) (*StudySpec, error) {
	var (
		name            = initialName
		description     string
		subjectsRaw     = strconv.Itoa(config.DefaultSubjects)
		itemsRaw        = strconv.Itoa(config.DefaultItems)
		replicationsRaw = strconv.Itoa(config.DefaultReplications)
		seedRaw         = strconv.Itoa(config.DefaultSeed)
		onFailure       = "abort"
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Study name").
				Description("A kebab-case name for your study").
				Placeholder("my-study").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Description").
				Description("What question does this study answer?").
				Value(&description),
			huh.NewInput().
				Title("Subjects").
				Description("Number of simulated subjects").
				Value(&subjectsRaw).
				Validate(atLeast(2)),
			huh.NewInput().
				Title("Items").
				Description("Number of simulated items").
				Value(&itemsRaw).
				Validate(atLeast(2)),
			huh.NewInput().
				Title("Replications").
				Description("How often to redraw and refit").
				Value(&replicationsRaw).
				Validate(atLeast(1)),
			huh.NewInput().
				Title("Seed").
				Description("Random seed for reproducible runs").
				Value(&seedRaw).
				Validate(atLeast(0)),
			huh.NewSelect[string]().
				Title("On estimator failure").
				Options(
					huh.NewOption("abort the run", "abort"),
					huh.NewOption("skip the replication", "skip"),
					huh.NewOption("retry with a fresh draw", "retry"),
				).
				Value(&onFailure),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	subjects, _ := strconv.Atoi(strings.TrimSpace(subjectsRaw))
	items, _ := strconv.Atoi(strings.TrimSpace(itemsRaw))
	replications, _ := strconv.Atoi(strings.TrimSpace(replicationsRaw))
	seed, _ := strconv.ParseUint(strings.TrimSpace(seedRaw), 10, 64)

	return &StudySpec{
		Name:         strings.TrimSpace(name),
		Description:  strings.TrimSpace(description),
		Subjects:     subjects,
		Items:        items,
		Replications: replications,
		Seed:         seed,
		OnFailure:    onFailure,
	}, nil
}

// GenerateStudyYAML renders a study.yaml from the given spec.
func GenerateStudyYAML(spec *StudySpec) (string, error) {
	tmpl, err := template.New("studyyaml").Parse(studyYAMLTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func atLeast(min int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a whole number")
		}
		if n < min {
			return fmt.Errorf("must be at least %d", min)
		}
		return nil
	}
}
