package interfaces

import "errors"

// Storage contract errors. Callers compare with errors.Is.
var (
	ErrJobNotFound           = errors.New("job not found")
	ErrJobNotActive          = errors.New("job is not processing")
	ErrActiveJobExists       = errors.New("an active job already exists for ticker")
	ErrAnalysisNotFound      = errors.New("analysis not found")
	ErrMacroNotFound         = errors.New("macro analysis not found")
	ErrDuplicateNotification = errors.New("notification already sent today")
)
