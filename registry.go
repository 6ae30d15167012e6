package stagecraft

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MergeStrategy controls how repeated results for a stage combine in a
// session's stage outputs.
type MergeStrategy string

const (
	// MergeReplace overwrites the stage's output on every invocation.
	MergeReplace MergeStrategy = "replace"

	// MergeAppend accumulates results across invocations unless the caller
	// explicitly requests replacement.
	MergeAppend MergeStrategy = "append"
)

// StageComplete is the terminal current-stage marker for finished sessions.
const StageComplete = "complete"

// StageDefinition declares one stage of the generation pipeline.
type StageDefinition struct {
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn     []string      `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	MergeStrategy MergeStrategy `json:"merge_strategy,omitempty" yaml:"merge_strategy,omitempty"`
	ParallelGroup string        `json:"parallel_group,omitempty" yaml:"parallel_group,omitempty"`
}

// RegistryOptions are used to configure a stage registry.
type RegistryOptions struct {
	Name   string             `json:"name" yaml:"name"`
	Stages []*StageDefinition `json:"stages" yaml:"stages"`
}

// Registry holds the static, ordered pipeline definition. It is validated at
// construction and immutable afterwards.
type Registry struct {
	name         string
	stages       []*StageDefinition
	stagesByName map[string]*StageDefinition
}

// NewRegistry returns a validated Registry for the given options.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("registry name required")
	}
	if len(opts.Stages) == 0 {
		return nil, fmt.Errorf("stages required")
	}

	stagesByName := make(map[string]*StageDefinition, len(opts.Stages))
	declared := make(map[string]bool, len(opts.Stages))
	groupDeps := map[string][]string{}

	for _, stage := range opts.Stages {
		if stage.Name == "" {
			return nil, fmt.Errorf("stage name required")
		}
		if _, exists := stagesByName[stage.Name]; exists {
			return nil, fmt.Errorf("duplicate stage name %q", stage.Name)
		}
		if stage.MergeStrategy == "" {
			stage.MergeStrategy = MergeReplace
		}
		if stage.MergeStrategy != MergeReplace && stage.MergeStrategy != MergeAppend {
			return nil, fmt.Errorf("stage %q: unknown merge strategy %q", stage.Name, stage.MergeStrategy)
		}

		// Dependencies must name earlier-declared stages. This also rules
		// out cycles without a separate graph walk.
		for _, dep := range stage.DependsOn {
			if dep == stage.Name {
				return nil, fmt.Errorf("stage %q depends on itself", stage.Name)
			}
			if !declared[dep] {
				return nil, fmt.Errorf("stage %q depends on %q which is not declared earlier", stage.Name, dep)
			}
		}

		// Stages sharing a parallel group must have identical dependency sets.
		if stage.ParallelGroup != "" {
			if prior, seen := groupDeps[stage.ParallelGroup]; seen {
				if !sameStageSet(prior, stage.DependsOn) {
					return nil, fmt.Errorf("parallel group %q: stage %q has a different dependency set than its siblings",
						stage.ParallelGroup, stage.Name)
				}
			} else {
				groupDeps[stage.ParallelGroup] = stage.DependsOn
			}
		}

		stagesByName[stage.Name] = stage
		declared[stage.Name] = true
	}

	return &Registry{
		name:         opts.Name,
		stages:       opts.Stages,
		stagesByName: stagesByName,
	}, nil
}

// Name returns the pipeline name.
func (r *Registry) Name() string {
	return r.name
}

// Stages returns the pipeline stages in declared order.
func (r *Registry) Stages() []*StageDefinition {
	return r.stages
}

// GetStage returns a stage definition by name.
func (r *Registry) GetStage(name string) (*StageDefinition, bool) {
	stage, ok := r.stagesByName[name]
	return stage, ok
}

// FirstStage returns the first stage in declared order.
func (r *Registry) FirstStage() *StageDefinition {
	return r.stages[0]
}

// Group returns the full stage-group containing the named stage: every stage
// sharing its parallel group tag, in declared order, or just the stage itself
// when it carries no tag.
func (r *Registry) Group(name string) []*StageDefinition {
	stage, ok := r.stagesByName[name]
	if !ok {
		return nil
	}
	if stage.ParallelGroup == "" {
		return []*StageDefinition{stage}
	}
	var group []*StageDefinition
	for _, s := range r.stages {
		if s.ParallelGroup == stage.ParallelGroup {
			group = append(group, s)
		}
	}
	return group
}

// NextGroup returns the next schedulable stage-group given the set of stages
// that already have output: the first declared stage whose dependencies are
// all satisfied but whose own output is missing, expanded to its full group.
// Returns nil when every stage has output.
func (r *Registry) NextGroup(have map[string]bool) []*StageDefinition {
	for _, stage := range r.stages {
		if have[stage.Name] {
			continue
		}
		satisfied := true
		for _, dep := range stage.DependsOn {
			if !have[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			return r.Group(stage.Name)
		}
	}
	return nil
}

func sameStageSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, name := range a {
		set[name] = true
	}
	for _, name := range b {
		if !set[name] {
			return false
		}
	}
	return true
}

// LoadFile loads a registry from a YAML pipeline file.
func LoadFile(path string) (*Registry, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	var opts RegistryOptions
	if err := yaml.Unmarshal(yamlData, &opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline file: %w", err)
	}
	return NewRegistry(opts)
}

// LoadString loads a registry from a YAML pipeline string.
func LoadString(data string) (*Registry, error) {
	var opts RegistryOptions
	if err := yaml.Unmarshal([]byte(data), &opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline file: %w", err)
	}
	return NewRegistry(opts)
}

// DefaultPipeline returns the canonical narrative generation pipeline:
// concept, then world lore, factions and characters in parallel, then plot,
// then quests.
func DefaultPipeline() *Registry {
	registry, err := NewRegistry(RegistryOptions{
		Name: "narrative",
		Stages: []*StageDefinition{
			{Name: "concept"},
			{Name: "world_lore", DependsOn: []string{"concept"}, ParallelGroup: "setting"},
			{Name: "factions", DependsOn: []string{"concept"}, ParallelGroup: "setting", MergeStrategy: MergeAppend},
			{Name: "characters", DependsOn: []string{"concept"}, ParallelGroup: "setting", MergeStrategy: MergeAppend},
			{Name: "plot", DependsOn: []string{"world_lore", "factions", "characters"}},
			{Name: "quests", DependsOn: []string{"plot"}, MergeStrategy: MergeAppend},
		},
	})
	if err != nil {
		panic(err)
	}
	return registry
}
