// Package transform defines the source-to-source transformer used by the
// build pipeline, and its esbuild-backed implementation.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/lambGirl/umi-tools/pkg/types"
)

//go:generate mockgen -destination=../mocks/transformer_mock.go -package=mocks github.com/lambGirl/umi-tools/pkg/transform Transformer

// ErrTransformFailed is the underlying error of a TransformError that carries no other cause
var ErrTransformFailed = errors.New("transform failed")

// Transformer converts the content of one source file according to a profile
type Transformer interface {
	Transform(ctx context.Context, content []byte, path string, profile types.TransformProfile) ([]byte, error)
}

// Func adapts a plain function to Transformer
type Func func(ctx context.Context, content []byte, path string, profile types.TransformProfile) ([]byte, error)

// Transform calls f
func (f Func) Transform(ctx context.Context, content []byte, path string, profile types.TransformProfile) ([]byte, error) {
	return f(ctx, content, path, profile)
}

// TransformError is a rejected file, with the position of the first problem when known
type TransformError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *TransformError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *TransformError) Unwrap() error {
	if e.Err == nil {
		return ErrTransformFailed
	}
	return e.Err
}

// AsTransformError wraps err in a TransformError for path unless it already is one
func AsTransformError(path string, err error) *TransformError {
	var te *TransformError
	if errors.As(err, &te) {
		return te
	}
	return &TransformError{Path: path, Message: err.Error(), Err: err}
}
