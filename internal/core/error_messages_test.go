package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	_, csvErr := csv.NewReader(strings.NewReader("a,\"b\nc")).ReadAll()

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "missing discriminator",
			err:      fmt.Errorf("load data.csv: %w", fmt.Errorf("%w: %q", ErrMissingDiscriminatorColumn, "row_type")),
			wantCode: "DS001",
		},
		{
			name:     "no dataset",
			err:      ErrNoDataset,
			wantCode: "DS002",
		},
		{
			name:     "unknown entity",
			err:      fmt.Errorf("%w: %q", ErrUnknownEntity, "widgets"),
			wantCode: "ENT001",
		},
		{
			name:     "file too large sentinel",
			err:      ErrFileTooLarge,
			wantCode: "FILE001",
		},
		{
			name:     "max bytes reader message",
			err:      errors.New("http: request body too large"),
			wantCode: "FILE001",
		},
		{
			name:     "csv parse error",
			err:      csvErr,
			wantCode: "FILE002",
		},
		{
			name:     "unsupported encoding",
			err:      fmt.Errorf("%w: %q", ErrUnsupportedEncoding, "ebcdic"),
			wantCode: "FILE003",
		},
		{
			name:     "empty file",
			err:      ErrEmptyFile,
			wantCode: "FILE005",
		},
		{
			name:     "too many uploads",
			err:      ErrTooManyUploads,
			wantCode: "UPL002",
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("load: %w", context.DeadlineExceeded),
			wantCode: "UPL005",
		},
		{
			name:     "rate limit case insensitive",
			err:      errors.New("RATE LIMIT exceeded"),
			wantCode: "RATE001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrNoDataset)

	expected := "No dataset is loaded (Code: DS002). Upload a dashboard CSV export to get started"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "known sentinel", err: ErrEmptyFile, want: true},
		{name: "unknown error", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Error("NewUserError(nil) should return nil")
	}

	technical := fmt.Errorf("%w: %q", ErrMissingDiscriminatorColumn, "row_type")
	ue := NewUserError(technical)

	if ue.User.Code != "DS001" {
		t.Errorf("Code = %q, want DS001", ue.User.Code)
	}
	if ue.Error() != ue.User.Message {
		t.Errorf("Error() = %q, want user message %q", ue.Error(), ue.User.Message)
	}
	if !errors.Is(ue, ErrMissingDiscriminatorColumn) {
		t.Error("UserError should unwrap to the technical error")
	}
}
