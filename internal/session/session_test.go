package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/local/pdfslicer/internal/history"
	"github.com/local/pdfslicer/internal/splitter"
)

type fakeDoc struct{ n int }

func (d fakeDoc) PageCount() int { return d.n }

func (d fakeDoc) PageAt(i int) splitter.Page {
	if i < 0 || i >= d.n {
		panic("out of range")
	}
	return i
}

// pageWriter writes the zero-based page indices of a slice, e.g. "[2 3 4]".
type pageWriter struct{ fail bool }

func (w pageWriter) Write(out io.Writer, s *splitter.Slice) error {
	if w.fail {
		return &splitter.WriteError{Err: errors.New("pdf engine exploded")}
	}
	_, err := fmt.Fprint(out, s.Pages)
	return err
}

type memSink struct {
	files  map[string]string
	order  []string
	failOn map[string]bool
}

func newMemSink() *memSink { return &memSink{files: map[string]string{}, failOn: map[string]bool{}} }

func (m *memSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if m.failOn[name] {
		return "", errors.New("disk full")
	}
	m.files[name] = string(data)
	m.order = append(m.order, name)
	return "/out/" + name, nil
}

type memHistory struct{ runs []history.Run }

func (h *memHistory) Record(ctx context.Context, run history.Run) error {
	h.runs = append(h.runs, run)
	return nil
}

type fakePreview map[int]string

func (p fakePreview) Snippet(i, width int) (string, error) {
	if s, ok := p[i]; ok {
		return s, nil
	}
	return "", errors.New("no text")
}

type harness struct {
	out  strings.Builder
	sink *memSink
	hist *memHistory
	prev Previewer
	sess *Session
}

func newHarness(input string, w splitter.Writer, prev Previewer) *harness {
	h := &harness{sink: newMemSink(), hist: &memHistory{}, prev: prev}
	h.sess = New(Dependencies{
		In:      strings.NewReader(input),
		Out:     &h.out,
		Writer:  w,
		History: h.hist,
	})
	return h
}

func (h *harness) request(pages int) Request {
	return Request{
		Doc:      fakeDoc{pages},
		Sink:     h.sink,
		Preview:  h.prev,
		Name:     "report.pdf",
		Stem:     "report",
		Source:   "/in/report.pdf",
		Location: "/in/report_slices",
	}
}

func TestRun_Interactive(t *testing.T) {
	h := newHarness("1-3\nabc\n5-3\n 4 \n\n", pageWriter{}, nil)

	sum, err := h.sess.Run(context.Background(), h.request(10))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if sum.Requested != 2 || sum.Written != 2 || sum.Failed != 0 || sum.RunID == "" {
		t.Errorf("summary = %+v", sum)
	}

	want := []string{"report_slice_1_pages_1-3.pdf", "report_slice_2_pages_4-4.pdf"}
	if strings.Join(h.sink.order, ",") != strings.Join(want, ",") {
		t.Fatalf("saved %v, want %v", h.sink.order, want)
	}
	if got := h.sink.files[want[0]]; got != "[0 1 2]" {
		t.Errorf("slice 1 content = %q", got)
	}
	if got := h.sink.files[want[1]]; got != "[3]" {
		t.Errorf("slice 2 content = %q", got)
	}

	out := h.out.String()
	for _, s := range []string{
		"Loaded 'report.pdf' - 10 page(s)",
		"Slice #1: ",
		`invalid range format: "abc"`,
		"start page 5 is after end page 3. Please try again.",
		"Saved slice #2 -> /out/report_slice_2_pages_4-4.pdf",
		"All done! Slices are stored in: /in/report_slices",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
	if n := strings.Count(out, "Slice #2: "); n != 3 {
		t.Errorf("prompted for slice #2 %d times, want 3", n)
	}

	if len(h.hist.runs) != 1 || len(h.hist.runs[0].Slices) != 2 || h.hist.runs[0].ID != sum.RunID {
		t.Errorf("history = %+v", h.hist.runs)
	}
}

func TestRun_EOFEndsInput(t *testing.T) {
	h := newHarness("2", pageWriter{}, nil)
	sum, err := h.sess.Run(context.Background(), h.request(3))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Written != 1 || h.sink.order[0] != "report_slice_1_pages_2-2.pdf" {
		t.Errorf("summary = %+v, saved %v", sum, h.sink.order)
	}
}

func TestRun_NoSlices(t *testing.T) {
	for _, input := range []string{"\n", "", "0\n\n"} {
		h := newHarness(input, pageWriter{}, nil)
		sum, err := h.sess.Run(context.Background(), h.request(3))
		if err != nil {
			t.Fatal(err)
		}
		if sum != (Summary{}) || len(h.sink.order) != 0 || len(h.hist.runs) != 0 {
			t.Errorf("input %q: summary %+v, saved %v", input, sum, h.sink.order)
		}
		if !strings.Contains(h.out.String(), "No slices defined - exiting.") {
			t.Errorf("input %q: output = %s", input, h.out.String())
		}
	}
}

func TestRun_DuplicatesAllowed(t *testing.T) {
	h := newHarness("2\n2\n1-3\n\n", pageWriter{}, nil)
	sum, err := h.sess.Run(context.Background(), h.request(3))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Written != 3 {
		t.Errorf("written = %d, want 3 (%v)", sum.Written, h.sink.order)
	}
}

func TestRun_WriteFailureContinues(t *testing.T) {
	h := newHarness("1\n2\n\n", pageWriter{}, nil)
	h.sink.failOn["report_slice_1_pages_1-1.pdf"] = true

	sum, err := h.sess.Run(context.Background(), h.request(3))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Written != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	out := h.out.String()
	if !strings.Contains(out, "Failed to write slice #1: disk full") || !strings.Contains(out, "Saved slice #2") {
		t.Errorf("output:\n%s", out)
	}

	run := h.hist.runs[0]
	if run.Slices[0].Error == "" || run.Slices[1].Location == "" || run.Written() != 1 {
		t.Errorf("history run = %+v", run)
	}
}

func TestRun_WriterFailure(t *testing.T) {
	h := newHarness("1\n\n", pageWriter{fail: true}, nil)
	sum, err := h.sess.Run(context.Background(), h.request(3))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 || len(h.sink.order) != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if !strings.Contains(h.out.String(), "Failed to write slice #1: pdf engine exploded") {
		t.Errorf("output:\n%s", h.out.String())
	}
}

func TestRun_PresetRanges(t *testing.T) {
	h := newHarness("", pageWriter{}, nil)
	req := h.request(5)
	req.Ranges = []string{"1-2", "x", "9", "5"}

	sum, err := h.sess.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Written != 2 {
		t.Errorf("summary = %+v", sum)
	}
	out := h.out.String()
	if !strings.Contains(out, `Skipping range "x"`) || !strings.Contains(out, `Skipping range "9"`) {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "Slice #1: ") {
		t.Error("preset ranges should not prompt")
	}
	if h.sink.order[1] != "report_slice_2_pages_5-5.pdf" {
		t.Errorf("saved %v", h.sink.order)
	}
}

func TestRun_Preview(t *testing.T) {
	h := newHarness("2-3\n1\n\n", pageWriter{}, fakePreview{1: "Chapter One"})
	if _, err := h.sess.Run(context.Background(), h.request(3)); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	if !strings.Contains(out, "page 2 starts with: Chapter One") {
		t.Errorf("missing preview:\n%s", out)
	}
	if strings.Contains(out, "page 1 starts with") {
		t.Errorf("unexpected preview for page without text:\n%s", out)
	}
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness("1\n\n", pageWriter{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.sess.Run(ctx, h.request(3)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if len(h.sink.order) != 0 {
		t.Error("nothing should be written after cancellation")
	}
}

func TestPromptPath(t *testing.T) {
	h := newHarness("  ~/docs/report.pdf  \n1\n\n", pageWriter{}, nil)
	p, err := h.sess.PromptPath(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p != "~/docs/report.pdf" {
		t.Errorf("PromptPath() = %q", p)
	}
	if !strings.HasPrefix(h.out.String(), "Enter the full path to the PDF file: ") {
		t.Errorf("output = %q", h.out.String())
	}

	// the same reader continues with the slice prompts
	sum, err := h.sess.Run(context.Background(), h.request(2))
	if err != nil || sum.Written != 1 {
		t.Errorf("Run after PromptPath = %+v, %v", sum, err)
	}

	if _, err := newHarness("", pageWriter{}, nil).sess.PromptPath(context.Background()); err == nil {
		t.Error("PromptPath on empty input should fail")
	}
}

func TestRun_CancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out syncBuffer
	sess := New(Dependencies{In: pr, Out: &out, Writer: pageWriter{}})
	sink := newMemSink()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := sess.Run(ctx, Request{Doc: fakeDoc{n: 3}, Sink: sink, Name: "doc.pdf", Stem: "doc"})
		done <- err
	}()

	if _, err := io.WriteString(pw, "1\n"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return strings.Contains(out.String(), "Slice #2: ") })
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if len(sink.order) != 0 {
		t.Errorf("wrote %v after cancellation", sink.order)
	}
}

func TestPromptPath_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out syncBuffer
	sess := New(Dependencies{In: pr, Out: &out})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := sess.PromptPath(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("PromptPath() = %v, want context.DeadlineExceeded", err)
	}

	// the abandoned read still delivers the line to the next prompt
	go io.WriteString(pw, "/tmp/a.pdf\n")
	p, err := sess.PromptPath(context.Background())
	if err != nil || p != "/tmp/a.pdf" {
		t.Errorf("PromptPath() after cancel = %q, %v", p, err)
	}
}

// syncBuffer is a strings.Builder safe for one writer and one reader goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
