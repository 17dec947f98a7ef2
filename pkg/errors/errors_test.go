package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"
)

func TestLeafRendering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "not found includes the path",
			err:  NotFound("a/b/c"),
			want: "the file or directory 'a/b/c' could not be found",
		},
		{
			name: "io error renders the underlying cause",
			err:  IO(io.ErrUnexpectedEOF),
			want: "I/O error: unexpected EOF",
		},
		{
			name: "other renders the message",
			err:  Other("directory not empty"),
			want: "other filesystem error: directory not empty",
		},
		{
			name: "otherf formats the message",
			err:  Otherf("directory '%s' is not empty", "a"),
			want: "other filesystem error: directory 'a' is not empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		if err := WithContext(nil, "should not appear"); err != nil {
			t.Errorf("WithContext(nil) = %v, want nil", err)
		}
		if err := WithContextf(nil, "should not appear %d", 1); err != nil {
			t.Errorf("WithContextf(nil) = %v, want nil", err)
		}
	})

	t.Run("renders context then cause", func(t *testing.T) {
		err := WithContext(NotFound("x"), "Could not open file 'x'")
		want := "Could not open file 'x', cause: the file or directory 'x' could not be found"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("chains render outermost first", func(t *testing.T) {
		err := WithContext(WithContext(Other("boom"), "inner"), "outer")
		want := "outer, cause: inner, cause: other filesystem error: boom"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("kind survives arbitrary nesting", func(t *testing.T) {
		err := error(NotFound("deep/path"))
		for i := 0; i < 10; i++ {
			err = WithContextf(err, "frame %d", i)
		}
		if !IsNotFound(err) {
			t.Error("IsNotFound lost the leaf kind through the chain")
		}
		var leaf *Error
		if !stderrors.As(err, &leaf) {
			t.Fatal("errors.As failed to find the leaf")
		}
		if leaf.Path != "deep/path" {
			t.Errorf("leaf.Path = %q, want %q", leaf.Path, "deep/path")
		}
	})
}

func TestIsKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"not found matches", NotFound("p"), KindNotFound, true},
		{"io matches", IO(fmt.Errorf("disk gone")), KindIO, true},
		{"other matches", Other("m"), KindOther, true},
		{"kind mismatch", NotFound("p"), KindIO, false},
		{"wrapped leaf matches", WithContext(IO(io.EOF), "ctx"), KindIO, true},
		{"plain error does not match", fmt.Errorf("plain"), KindOther, false},
		{"nil does not match", nil, KindNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind(%v, %v) = %v, want %v", tt.err, tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorsIsByKind(t *testing.T) {
	t.Parallel()

	err := WithContext(NotFound("a"), "ctx")
	if !stderrors.Is(err, NotFound("b")) {
		t.Error("errors.Is should match on kind, not on path")
	}
	if stderrors.Is(err, Other("x")) {
		t.Error("errors.Is matched across different kinds")
	}
}

func TestRootCause(t *testing.T) {
	t.Parallel()

	leaf := NotFound("p")
	err := WithContext(WithContext(leaf, "inner"), "outer")
	if got := RootCause(err); got != leaf {
		t.Errorf("RootCause = %v, want the leaf error", got)
	}

	// An IO leaf unwraps one step further, down to the host error.
	host := fmt.Errorf("device busy")
	if got := RootCause(WithContext(IO(host), "ctx")); got != host {
		t.Errorf("RootCause = %v, want the host error", got)
	}
}
