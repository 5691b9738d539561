package rule

import "fmt"

// Status represents the lifecycle state of a registered rule. Exactly one
// status is active per rule at any time.
type Status string

const (
	// StatusUninitialized is the initial status, set immediately on
	// add, update and re-enable, and re-entered when a module handler
	// becomes unavailable.
	StatusUninitialized Status = "uninitialized"

	// StatusIdle means all module handlers are bound and the rule is
	// ready to execute.
	StatusIdle Status = "idle"

	// StatusRunning means a trigger fired and the rule's action chain
	// is executing.
	StatusRunning Status = "running"

	// StatusDisabled means the rule was explicitly disabled. It
	// supersedes the other states until re-enabled.
	StatusDisabled Status = "disabled"
)

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusUninitialized, StatusIdle, StatusRunning, StatusDisabled:
		return nil
	default:
		return fmt.Errorf("invalid rule status: %s", s)
	}
}

// IsActive returns true if the rule participates in trigger dispatch.
func (s Status) IsActive() bool {
	return s == StatusIdle || s == StatusRunning
}

// StatusDetail refines StatusUninitialized and StatusDisabled with the
// reason a rule is not idle.
type StatusDetail string

const (
	// DetailNone carries no additional information.
	DetailNone StatusDetail = ""

	// DetailDisabled marks a rule disabled by the caller.
	DetailDisabled StatusDetail = "disabled"

	// DetailHandlerMissing marks a rule with at least one module whose
	// handler could not be resolved.
	DetailHandlerMissing StatusDetail = "handler_missing"

	// DetailInvalidRule marks a rule that failed structural or
	// configuration validation.
	DetailInvalidRule StatusDetail = "invalid_rule"

	// DetailTemplateMissing marks a template-based rule whose template
	// is not yet available.
	DetailTemplateMissing StatusDetail = "template_missing"
)

// StatusInfo is the (status, detail, description) triple that callers use
// to diagnose a rule's health.
type StatusInfo struct {
	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Detail refines the status, when applicable.
	Detail StatusDetail `json:"detail,omitempty"`

	// Description is a human-readable explanation, when applicable.
	Description string `json:"description,omitempty"`
}

// NewStatusInfo returns a StatusInfo with no detail.
func NewStatusInfo(s Status) StatusInfo {
	return StatusInfo{Status: s}
}

// NewStatusInfoDetailed returns a StatusInfo with detail and description.
func NewStatusInfoDetailed(s Status, detail StatusDetail, description string) StatusInfo {
	return StatusInfo{Status: s, Detail: detail, Description: description}
}

// String renders the status info for logs.
func (i StatusInfo) String() string {
	if i.Detail == DetailNone {
		return string(i.Status)
	}
	if i.Description == "" {
		return fmt.Sprintf("%s (%s)", i.Status, i.Detail)
	}
	return fmt.Sprintf("%s (%s): %s", i.Status, i.Detail, i.Description)
}
