/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package ops

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
)

// CommandGroup represents the operational classification of commands
type CommandGroup string

const (
	GroupAudit   CommandGroup = "audit"   // evaluate, branches, notebooks, batch
	GroupSupport CommandGroup = "support" // version, help
)

// CommandCategory refines a group into the concern a command serves.
type CommandCategory string

const (
	CategoryCompliance    CommandCategory = "compliance"    // whole-tree evaluation
	CategoryCollaboration CommandCategory = "collaboration" // branch hygiene
	CategoryStructure     CommandCategory = "structure"     // notebook decomposition
	CategoryOrchestration CommandCategory = "orchestration" // multi-repository runs
	CategoryInformation   CommandCategory = "information"   // version, build info
)

// CommandRegistration ties a cobra command to its classification.
type CommandRegistration struct {
	Name        string
	Group       CommandGroup
	Category    CommandCategory
	Command     *cobra.Command
	Description string
}

// Registry holds command registrations in the order they were made; the
// grouped help output follows that order.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*CommandRegistration
	ordered []*CommandRegistration
}

// NewRegistry returns an empty registry. Tests use this; production code
// goes through the global one.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*CommandRegistration)}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the global command registry
func GetRegistry() *Registry {
	return globalRegistry
}

// RegisterCommand registers a command in the global registry.
func RegisterCommand(name string, group CommandGroup, category CommandCategory, cmd *cobra.Command, description string) error {
	return GetRegistry().Register(name, group, category, cmd, description)
}

// Register adds a command. Each name registers once.
func (r *Registry) Register(name string, group CommandGroup, category CommandCategory, cmd *cobra.Command, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}

	reg := &CommandRegistration{
		Name:        name,
		Group:       group,
		Category:    category,
		Command:     cmd,
		Description: description,
	}
	r.byName[name] = reg
	r.ordered = append(r.ordered, reg)
	return nil
}

// GetCommand returns a registered command by name
func (r *Registry) GetCommand(name string) (*CommandRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, exists := r.byName[name]
	return reg, exists
}

// GetCommandsByGroup returns the commands of a group in registration order.
func (r *Registry) GetCommandsByGroup(group CommandGroup) []*CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var regs []*CommandRegistration
	for _, reg := range r.ordered {
		if reg.Group == group {
			regs = append(regs, reg)
		}
	}
	return regs
}

// GetAllCommands returns all registered commands keyed by name.
func (r *Registry) GetAllCommands() map[string]*CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make(map[string]*CommandRegistration, len(r.byName))
	for name, reg := range r.byName {
		all[name] = reg
	}
	return all
}

// ListGroups counts registrations per group.
func (r *Registry) ListGroups() map[CommandGroup]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[CommandGroup]int)
	for _, reg := range r.ordered {
		counts[reg.Group]++
	}
	return counts
}
