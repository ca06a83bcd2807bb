/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package ops

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// CommandClassification is the expected group and category of a command.
type CommandClassification struct {
	Group    CommandGroup
	Category CommandCategory
}

// shippedCommandSet lists every command the binary must register, with
// its documented classification. The help renderer and the validator
// both derive from this table.
func shippedCommandSet() map[string]CommandClassification {
	return map[string]CommandClassification{
		"evaluate":  {Group: GroupAudit, Category: CategoryCompliance},
		"branches":  {Group: GroupAudit, Category: CategoryCollaboration},
		"notebooks": {Group: GroupAudit, Category: CategoryStructure},
		"batch":     {Group: GroupAudit, Category: CategoryOrchestration},
		"version":   {Group: GroupSupport, Category: CategoryInformation},
	}
}

func groupCategorySet() map[CommandGroup][]CommandCategory {
	return map[CommandGroup][]CommandCategory{
		GroupAudit: {
			CategoryCompliance,
			CategoryCollaboration,
			CategoryStructure,
			CategoryOrchestration,
		},
		GroupSupport: {
			CategoryInformation,
		},
	}
}

// ErrorType distinguishes the validation checks.
type ErrorType int

const (
	ErrorTypeCoreCommand ErrorType = iota
	ErrorTypeExtensionWarning
	ErrorTypeTaxonomyConsistency
)

// ErrorSeverity ranks validation findings.
type ErrorSeverity int

const (
	SeverityError ErrorSeverity = iota
	SeverityWarning
	SeverityInfo
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// ValidationError is a single taxonomy finding.
type ValidationError struct {
	Type     ErrorType
	Severity ErrorSeverity
	Command  string
	Message  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Command, e.Message)
}

// TaxonomyValidator checks a registry against the shipped command set:
// every shipped command registered under its documented group and
// category, and no registration using a group or category outside the
// taxonomy.
type TaxonomyValidator struct {
	shipped    map[string]CommandClassification
	categories map[CommandGroup][]CommandCategory
}

// NewTaxonomyValidator creates a validator preloaded with the shipped
// command set.
func NewTaxonomyValidator() *TaxonomyValidator {
	return &TaxonomyValidator{
		shipped:    shippedCommandSet(),
		categories: groupCategorySet(),
	}
}

// Validate runs every check and returns the findings in a stable order.
func (v *TaxonomyValidator) Validate(registry *Registry) []ValidationError {
	var errs []ValidationError

	for _, name := range sortedKeys(v.shipped) {
		expected := v.shipped[name]
		reg, ok := registry.GetCommand(name)
		if !ok {
			errs = append(errs, ValidationError{
				Type:     ErrorTypeCoreCommand,
				Severity: SeverityError,
				Command:  name,
				Message:  "shipped command is not registered",
			})
			continue
		}
		if reg.Group != expected.Group {
			errs = append(errs, ValidationError{
				Type:     ErrorTypeCoreCommand,
				Severity: SeverityError,
				Command:  name,
				Message:  fmt.Sprintf("registered under group %s, documented as %s", reg.Group, expected.Group),
			})
		}
		if reg.Category != expected.Category {
			errs = append(errs, ValidationError{
				Type:     ErrorTypeCoreCommand,
				Severity: SeverityError,
				Command:  name,
				Message:  fmt.Sprintf("registered under category %s, documented as %s", reg.Category, expected.Category),
			})
		}
	}

	all := registry.GetAllCommands()
	for _, name := range sortedKeys(all) {
		reg := all[name]
		allowed, knownGroup := v.categories[reg.Group]
		if !knownGroup {
			errs = append(errs, ValidationError{
				Type:     ErrorTypeTaxonomyConsistency,
				Severity: SeverityError,
				Command:  name,
				Message:  fmt.Sprintf("unknown group %q", reg.Group),
			})
		}
		if !slices.Contains(allowed, reg.Category) {
			errs = append(errs, ValidationError{
				Type:     ErrorTypeTaxonomyConsistency,
				Severity: SeverityError,
				Command:  name,
				Message:  fmt.Sprintf("category %q does not belong to group %q", reg.Category, reg.Group),
			})
		}
		if _, core := v.shipped[name]; !core {
			errs = append(errs, ValidationError{
				Type:     ErrorTypeExtensionWarning,
				Severity: SeverityWarning,
				Command:  name,
				Message:  "not part of the shipped command set",
			})
		}
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FilterErrors keeps findings of one type.
func FilterErrors(errs []ValidationError, errorType ErrorType) []ValidationError {
	var kept []ValidationError
	for _, e := range errs {
		if e.Type == errorType {
			kept = append(kept, e)
		}
	}
	return kept
}

// FilterErrorsBySeverity keeps findings of one severity.
func FilterErrorsBySeverity(errs []ValidationError, severity ErrorSeverity) []ValidationError {
	var kept []ValidationError
	for _, e := range errs {
		if e.Severity == severity {
			kept = append(kept, e)
		}
	}
	return kept
}

// FormatErrors renders findings as a numbered list for log output.
func FormatErrors(errs []ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d validation errors:\n", len(errs))
	for i, e := range errs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e.Error())
	}
	return b.String()
}
