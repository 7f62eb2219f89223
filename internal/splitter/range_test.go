package splitter

import (
	"errors"
	"strconv"
	"testing"
)

func TestParse_SinglePage(t *testing.T) {
	const pageCount = 10
	for n := 1; n <= pageCount; n++ {
		got, err := Parse(strconv.Itoa(n), pageCount)
		if err != nil {
			t.Fatalf("Parse(%d) error: %v", n, err)
		}
		if want := (Interval{n - 1, n - 1}); got != want {
			t.Errorf("Parse(%d) = %+v, want %+v", n, got, want)
		}
	}
}

func TestParse_Ranges(t *testing.T) {
	const pageCount = 6
	for a := 1; a <= pageCount; a++ {
		for b := a; b <= pageCount; b++ {
			in := strconv.Itoa(a) + "-" + strconv.Itoa(b)
			got, err := Parse(in, pageCount)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", in, err)
			}
			if want := (Interval{a - 1, b - 1}); got != want {
				t.Errorf("Parse(%q) = %+v, want %+v", in, got, want)
			}
		}
	}
}

func TestParse_TrimsSurroundingWhitespace(t *testing.T) {
	got, err := Parse("  2-4\n", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (Interval{1, 3}) {
		t.Errorf("got %+v, want {1 3}", got)
	}
}

func TestParse_BlanksAroundDash(t *testing.T) {
	for _, in := range []string{"3 - 5", "3 -5", "3- 5", " 3\t-\t5 "} {
		got, err := Parse(in, 10)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", in, err)
		}
		if got != (Interval{2, 4}) {
			t.Errorf("Parse(%q) = %+v, want {2 4}", in, got)
		}
	}
	got, err := Parse(" 7 ", 10)
	if err != nil || got != (Interval{6, 6}) {
		t.Errorf("Parse(\" 7 \") = %+v, %v; want {6 6}", got, err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input  string
		kind   Kind
		reason Reason
	}{
		{"", KindFormat, 0},
		{"   ", KindFormat, 0},
		{"a-3", KindFormat, 0},
		{"3-b", KindFormat, 0},
		{"x", KindFormat, 0},
		{"1-2-3", KindFormat, 0},
		{"5-", KindFormat, 0},
		{"-3", KindFormat, 0},
		{" - 5", KindFormat, 0},
		{"3 4", KindFormat, 0},
		{"5-3", KindRange, ReasonStartAfterEnd},
		{"0-3", KindRange, ReasonOutOfBounds},
		{"3-11", KindRange, ReasonOutOfBounds},
		{"0", KindRange, ReasonOutOfBounds},
		{"11", KindRange, ReasonOutOfBounds},
		{"11-5", KindRange, ReasonOutOfBounds},
	}

	for _, tt := range tests {
		_, err := Parse(tt.input, 10)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want %v", tt.input, tt.kind)
			continue
		}
		if got := KindOf(err); got != tt.kind {
			t.Errorf("Parse(%q) kind = %v, want %v (err: %v)", tt.input, got, tt.kind, err)
		}
		if tt.kind == KindRange {
			var re *RangeError
			if !errors.As(err, &re) {
				t.Fatalf("Parse(%q) error is %T, want *RangeError", tt.input, err)
			}
			if re.Reason != tt.reason {
				t.Errorf("Parse(%q) reason = %v, want %v", tt.input, re.Reason, tt.reason)
			}
		}
	}
}

func TestParse_FormatErrorWrapsConversionFailure(t *testing.T) {
	_, err := Parse("a-3", 10)
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		t.Fatalf("error %v does not wrap *strconv.NumError", err)
	}
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Input != "a-3" {
		t.Errorf("FormatError input = %+v, want a-3", fe)
	}
}

func TestParse_EmptyDocumentRejectsEverything(t *testing.T) {
	if _, err := Parse("1", 0); KindOf(err) != KindRange {
		t.Errorf("Parse on empty document: got %v, want range error", err)
	}
}

func TestInterval_String(t *testing.T) {
	if got := (Interval{2, 4}).String(); got != "3-5" {
		t.Errorf("String() = %q, want 3-5", got)
	}
	if got := (Interval{2, 4}).Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&FormatError{Input: "x"}, true},
		{&RangeError{Reason: ReasonOutOfBounds}, true},
		{&DocumentLoadError{Path: "a.pdf", Err: errors.New("boom")}, false},
		{&WriteError{Slice: 1, Err: errors.New("disk full")}, false},
		{errors.New("other"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := Recoverable(tt.err); got != tt.want {
			t.Errorf("Recoverable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
