package rag

import "errors"

// Failure stages of the pipeline. Services wrap these with fmt.Errorf("%w: ...")
// so callers can branch on the stage with errors.Is instead of matching strings.
var (
	ErrConfiguration = errors.New("collaborator not configured")
	ErrExtraction    = errors.New("extraction failed")
	ErrEmbedding     = errors.New("embedding failed")
	ErrGeneration    = errors.New("generation failed")
	ErrStore         = errors.New("store operation failed")
	ErrValidation    = errors.New("invalid input")
)
