package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCauseInChain(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStoreOpenFailed, "open store", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if got := err.Error(); got != "open store: disk full" {
		t.Fatalf("error = %q, want %q", got, "open store: disk full")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("startup: %w", Wrap(CodeStoreMigrationFailed, "run migrations", stderrors.New("boom")))

	if !stderrors.Is(err, New(CodeStoreMigrationFailed, "")) {
		t.Fatal("expected code match through wrapping")
	}
	if stderrors.Is(err, New(CodeStoreOpenFailed, "")) {
		t.Fatal("expected different code not to match")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: CodeUnknown},
		{name: "plain", err: stderrors.New("x"), want: CodeUnknown},
		{name: "domain", err: New(CodeNotFound, "missing"), want: CodeNotFound},
		{name: "wrapped", err: fmt.Errorf("outer: %w", New(CodeStorePragmaFailed, "wal")), want: CodeStorePragmaFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Fatalf("CodeOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFatalCodes(t *testing.T) {
	if !CodeStoreMigrationFailed.Fatal() {
		t.Fatal("expected migration failure to be fatal")
	}
	if CodeForeignKeyViolated.Fatal() {
		t.Fatal("expected repository constraint errors not to be fatal")
	}
}
