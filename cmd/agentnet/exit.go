package main

import (
	"fmt"

	"agentnet/internal/domain"
)

type exitError struct {
	code    int
	message string
	silent  bool
}

func (e exitError) Error() string {
	return e.message
}

func exitSilent(code int) error {
	return exitError{code: code, silent: true}
}

// exitFor maps domain error codes onto process exit codes.
func exitFor(err error) error {
	if err == nil {
		return nil
	}
	code, ok := domain.CodeFrom(err)
	if !ok {
		return err
	}
	status := 1
	switch code {
	case domain.CodeInvalidArgument, domain.CodeEndpointDerivation:
		status = 2
	case domain.CodeCatalogNotFound:
		status = 3
	case domain.CodeNoTools, domain.CodePlanning, domain.CodeSchemaValidation:
		status = 4
	case domain.CodeEmbeddingProvider, domain.CodeToolCall, domain.CodeUnavailable:
		status = 5
	case domain.CodeCanceled:
		status = 130
	}
	return exitError{code: status, message: fmt.Sprintf("%s: %v", code, err)}
}
