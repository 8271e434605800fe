package flow

import (
	"context"

	"github.com/hearth-home/hearth/internal/configentry"
)

// FieldKind identifies how a form field should be rendered and parsed.
type FieldKind string

const (
	KindString   FieldKind = "string"
	KindPassword FieldKind = "password"
	KindInt      FieldKind = "int"
	KindBool     FieldKind = "bool"
	KindSelect   FieldKind = "select"
)

// Field describes one input in a form step.
type Field struct {
	// Name is the key the submitted value arrives under.
	Name string `json:"name"`

	// Label is the human-readable prompt.
	Label string `json:"label"`

	// Kind selects the input widget and value type.
	Kind FieldKind `json:"kind"`

	// Required marks fields that must be supplied.
	Required bool `json:"required"`

	// Default is pre-filled in the form. Optional.
	Default any `json:"default,omitempty"`

	// Options lists the choices for select fields.
	Options []string `json:"options,omitempty"`
}

// Form is one step of a config flow presented to the user.
type Form struct {
	// StepID names the step; it is echoed back with the submission.
	StepID string `json:"step_id"`

	// Fields are the inputs to collect.
	Fields []Field `json:"fields"`
}

// ResultType discriminates the outcomes a flow step can produce.
type ResultType string

const (
	// ResultShowForm asks the user for (more) input.
	ResultShowForm ResultType = "form"

	// ResultCreateEntry finishes the flow with a new config entry.
	ResultCreateEntry ResultType = "create_entry"

	// ResultAbort terminates the flow without creating anything.
	ResultAbort ResultType = "abort"
)

// Result is the outcome of starting a flow or handling a step.
type Result struct {
	Type ResultType `json:"type"`

	// Form is set for ResultShowForm.
	Form *Form `json:"form,omitempty"`

	// Errors carries per-field validation messages when re-showing a
	// form after rejected input. Keyed by field name; the key "base"
	// addresses the form as a whole.
	Errors map[string]string `json:"errors,omitempty"`

	// Title, UniqueID, Data and Options describe the entry to create
	// for ResultCreateEntry.
	Title    string           `json:"title,omitempty"`
	UniqueID string           `json:"unique_id,omitempty"`
	Data     configentry.Data `json:"data,omitempty"`
	Options  configentry.Data `json:"options,omitempty"`

	// Reason explains a ResultAbort, e.g. "already_configured".
	Reason string `json:"reason,omitempty"`
}

// ShowForm builds a form result.
func ShowForm(form Form) Result {
	return Result{Type: ResultShowForm, Form: &form}
}

// ShowFormWithErrors re-shows a form with validation messages.
func ShowFormWithErrors(form Form, errs map[string]string) Result {
	return Result{Type: ResultShowForm, Form: &form, Errors: errs}
}

// CreateEntry finishes a flow with the entry to persist.
func CreateEntry(title, uniqueID string, data configentry.Data) Result {
	return Result{Type: ResultCreateEntry, Title: title, UniqueID: uniqueID, Data: data}
}

// Abort terminates a flow with a machine-readable reason.
func Abort(reason string) Result {
	return Result{Type: ResultAbort, Reason: reason}
}

// Handler implements an integration's config flow.
//
// Begin returns the first step. Handle receives the submitted values
// for a step and returns the next result: another form, a finished
// entry, or an abort. Handlers validate input themselves and use
// ShowFormWithErrors to reject it.
type Handler interface {
	Begin(ctx context.Context) Result
	Handle(ctx context.Context, stepID string, input map[string]any) Result
}
