package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

// ============================================================================
// 1. Error creation with different codes/categories
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		message      string
		wantCategory ErrorCategory
	}{
		{"invalid_argument", ErrCodeInvalidArgument, "empty name", CategoryUsage},
		{"duplicate_name", ErrCodeDuplicateName, "already active", CategoryUsage},
		{"invalid_config", ErrCodeInvalidConfig, "bad samples", CategoryUsage},
		{"not_ready", ErrCodeNotReady, "not started", CategoryInvariant},
		{"unknown_token", ErrCodeUnknownToken, "double release", CategoryInvariant},
		{"assertion", ErrCodeAssertion, "two inputs", CategoryInvariant},
		{"timeout", ErrCodeTimeout, "timed out", CategoryPolicy},
		{"unclean", ErrCodeUncleanShutdown, "starved", CategoryRuntime},
		{"internal", ErrCodeInternal, "internal error", CategoryRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeInvalidArgument, "objection %q is empty", "")
	want := `objection "" is empty`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestFromCode(t *testing.T) {
	err := FromCode(ErrCodeTimeout)
	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeTimeout)
	}
	if err.Error() != "timed out - shutting down" {
		t.Errorf("Error() = %v, want %v", err.Error(), "timed out - shutting down")
	}
}

func TestFromCodeUnknown(t *testing.T) {
	err := FromCode(ErrorCode("BOGUS"))
	if err.Error() != "unknown error" {
		t.Errorf("Error() = %v, want unknown error", err.Error())
	}
	if err.Category() != CategoryRuntime {
		t.Errorf("Category() = %v, want runtime", err.Category())
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code ErrorCode
	}{
		{"invalid_argument", InvalidArgument("bad"), ErrCodeInvalidArgument},
		{"not_ready", NotReady("stimulus"), ErrCodeNotReady},
		{"unknown_token", UnknownToken("stimulus", "already released"), ErrCodeUnknownToken},
		{"assertion", Assertion("splitter needs one input"), ErrCodeAssertion},
		{"internal", Internal("boom"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", tt.err.Code(), tt.code)
			}
		})
	}

	nr := NotReady("stimulus")
	if nr.Objection() != "stimulus" {
		t.Errorf("Objection() = %q, want stimulus", nr.Objection())
	}
}

// ============================================================================
// 2. Fatal vs non-fatal errors
// ============================================================================

func TestFatal(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeNotReady, true},
		{ErrCodeUnknownToken, true},
		{ErrCodeAssertion, true},
		{ErrCodeInvalidArgument, false},
		{ErrCodeTimeout, false},
		{ErrCodeUncleanShutdown, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := FromCode(tt.code).Fatal(); got != tt.want {
				t.Errorf("Fatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithCategoryOverride(t *testing.T) {
	err := New(ErrCodeTimeout, "forced", WithCategory(CategoryInvariant))
	if !err.Fatal() {
		t.Error("expected category override to make error fatal")
	}
}

// ============================================================================
// 3. Metadata and context
// ============================================================================

func TestMetadata(t *testing.T) {
	err := New(ErrCodeUnknownToken, "double release",
		WithMetadata("run", "r1"),
		WithObjection("observing"),
		WithToken("tok-1"),
		WithSimTime(7*time.Nanosecond),
	)
	if err.Metadata()["run"] != "r1" {
		t.Error("expected metadata 'run' to be 'r1'")
	}
	if err.Objection() != "observing" {
		t.Errorf("Objection() = %q", err.Objection())
	}
	if err.Token() != "tok-1" {
		t.Errorf("Token() = %q", err.Token())
	}
	if at, ok := err.SimTime(); !ok || at != 7*time.Nanosecond {
		t.Errorf("SimTime() = %v, %v", at, ok)
	}
}

func TestMetadataImmutability(t *testing.T) {
	err := New(ErrCodeInternal, "x", WithMetadata("k", "v"))
	md := err.Metadata()
	md["k"] = "changed"
	if err.Metadata()["k"] != "v" {
		t.Error("Metadata() should return a copy")
	}
}

func TestNoSimTime(t *testing.T) {
	if _, ok := New(ErrCodeInternal, "x").SimTime(); ok {
		t.Error("SimTime() should report unset")
	}
}

// ============================================================================
// 4. Wrapping
// ============================================================================

func TestWrap(t *testing.T) {
	base := fmt.Errorf("disk full")
	err := Wrap(base, "writing trace")
	if err.Code() != ErrCodeInternal {
		t.Errorf("Code() = %v, want INTERNAL", err.Code())
	}
	if err.Error() != "writing trace: disk full" {
		t.Errorf("Error() = %v", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should match base with errors.Is")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if WrapWithCode(nil, ErrCodeInternal, "x") != nil {
		t.Error("WrapWithCode(nil) should be nil")
	}
}

func TestWrapStructuredError(t *testing.T) {
	inner := NotReady("stimulus", WithSimTime(3*time.Nanosecond))
	err := Wrap(inner, "process stimulus")
	if err.Code() != ErrCodeNotReady {
		t.Errorf("Code() = %v, want NOT_READY", err.Code())
	}
	if err.Objection() != "stimulus" {
		t.Errorf("Objection() = %q", err.Objection())
	}
	if at, _ := err.SimTime(); at != 3*time.Nanosecond {
		t.Errorf("SimTime() = %v", at)
	}
	if !IsFatal(err) {
		t.Error("wrapped invariant error should stay fatal")
	}
}

func TestWrapContextError(t *testing.T) {
	err := Wrap(context.Canceled, "run")
	if err.Code() != ErrCodeCanceled {
		t.Errorf("Code() = %v, want CANCELED", err.Code())
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(fmt.Errorf("boom"), "process %s", "behavior")
	if err.Error() != "process behavior: boom" {
		t.Errorf("Error() = %v", err.Error())
	}
}

func TestWrapWithCode(t *testing.T) {
	err := WrapWithCode(fmt.Errorf("bad toml"), ErrCodeInvalidConfig, "loading config")
	if err.Code() != ErrCodeInvalidConfig {
		t.Errorf("Code() = %v", err.Code())
	}
	if Cause(err).Error() != "bad toml" {
		t.Errorf("Cause() = %v", Cause(err))
	}
}

// ============================================================================
// 5. JSON
// ============================================================================

func TestJSON(t *testing.T) {
	err := New(ErrCodeUnknownToken, "double release",
		WithObjection("observing"),
		WithSimTime(5*time.Nanosecond),
		WithCause(fmt.Errorf("count is zero")),
	)
	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("Marshal() error = %v", jerr)
	}

	var decoded map[string]interface{}
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("Unmarshal() error = %v", jerr)
	}
	if decoded["code"] != "UNKNOWN_TOKEN" {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["category"] != "invariant" {
		t.Errorf("category = %v", decoded["category"])
	}
	if decoded["fatal"] != true {
		t.Errorf("fatal = %v", decoded["fatal"])
	}
	if decoded["cause"] != "count is zero" {
		t.Errorf("cause = %v", decoded["cause"])
	}
	if decoded["sim_time"] != "5ns" {
		t.Errorf("sim_time = %v", decoded["sim_time"])
	}
}

// ============================================================================
// 6. Inspection helpers
// ============================================================================

func TestIs(t *testing.T) {
	err := Wrap(FromCode(ErrCodeUnknownToken), "release")
	if !Is(err, ErrCodeUnknownToken) {
		t.Error("Is() should find code in chain")
	}
	if Is(err, ErrCodeNotReady) {
		t.Error("Is() should not match other codes")
	}
	if Is(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("Is() should be false for plain errors")
	}
}

func TestIsWithStdlibWrapping(t *testing.T) {
	err := fmt.Errorf("process stimulus: %w", NotReady("stimulus"))
	if !Is(err, ErrCodeNotReady) {
		t.Error("Is() should see through fmt.Errorf wrapping")
	}
	if Code(err) != ErrCodeNotReady {
		t.Errorf("Code() = %v", Code(err))
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory(FromCode(ErrCodeTimeout), CategoryPolicy) {
		t.Error("timeout should be policy")
	}
	if IsCategory(fmt.Errorf("plain"), CategoryPolicy) {
		t.Error("plain errors have no category")
	}
}

func TestCodeAndCategoryOfPlainError(t *testing.T) {
	plain := fmt.Errorf("plain")
	if Code(plain) != "" {
		t.Errorf("Code() = %v", Code(plain))
	}
	if Category(plain) != "" {
		t.Errorf("Category() = %v", Category(plain))
	}
	if AsStructured(plain) != nil {
		t.Error("AsStructured() should be nil")
	}
	if IsFatal(plain) {
		t.Error("plain errors are not fatal")
	}
}

func TestJoin(t *testing.T) {
	if Join(nil, nil) != nil {
		t.Error("Join of nils should be nil")
	}
	err := Join(FromCode(ErrCodeTimeout), fmt.Errorf("other"))
	if !Is(err, ErrCodeTimeout) {
		t.Error("joined error should carry TIMEOUT")
	}
}

func TestRecoverPanic(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"string", "boom", "boom"},
		{"int", 42, "42"},
		{"error", fmt.Errorf("bad"), "recovered from panic: bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RecoverPanic(tt.value)
			if err.Error() != tt.want {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.want)
			}
			if err.Code() != ErrCodeInternal {
				t.Errorf("Code() = %v", err.Code())
			}
		})
	}
	if RecoverPanic(nil) != nil {
		t.Error("RecoverPanic(nil) should be nil")
	}
}
