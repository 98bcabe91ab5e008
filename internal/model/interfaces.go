package model

// Reporter defines how to output validation results
type Reporter interface {
	Report(diags []Diagnostic) error
}
