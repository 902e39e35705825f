package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{
			name: "classified adapter failure",
			err:  fmt.Errorf("fetch: %w", failure.New(model.ErrorCategoryAuthFailed, "401")),
			want: "auth_failed",
		},
		{name: "canceled", err: fmt.Errorf("wait: %w", context.Canceled), want: "context_canceled"},
		{name: "deadline", err: context.DeadlineExceeded, want: "deadline_exceeded"},
		{name: "errors.New", err: goerrors.New("boom"), want: "errors_errorstring"},
		{name: "wrapped custom type", err: fmt.Errorf("outer: %w", customErr{}), want: "errors_customerr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
