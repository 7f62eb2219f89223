// Package session drives one interactive slicing run: it collects ranges
// from the user, extracts each slice and hands it to the output sinks.
package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfslicer/internal/history"
	"github.com/local/pdfslicer/internal/metrics"
	"github.com/local/pdfslicer/internal/output"
	"github.com/local/pdfslicer/internal/splitter"
)

const previewWidth = 60

// Previewer returns a one-line text snippet of a page.
type Previewer interface {
	Snippet(i, width int) (string, error)
}

// Recorder keeps a record of finished runs.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Dependencies are the collaborators of a Session. History is optional.
type Dependencies struct {
	In      io.Reader
	Out     io.Writer
	Writer  splitter.Writer
	History Recorder
}

// Request describes the document to slice and where its slices go.
// Preview is optional.
type Request struct {
	Doc      splitter.Document
	Sink     output.Sink
	Preview  Previewer
	Name     string   // display name of the source, e.g. "report.pdf"
	Stem     string   // prefix of the slice file names
	Source   string   // reference the document was loaded from
	Location string   // where slices end up, shown to the user
	Ranges   []string // preset ranges; nil means prompt for them
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID     string
	Requested int
	Written   int
	Failed    int
}

// Session talks to the user over In/Out.
type Session struct {
	deps Dependencies
	in   *bufio.Reader
	// pending carries the result of a read that outlived its caller's ctx
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func New(deps Dependencies) *Session {
	return &Session{deps: deps, in: bufio.NewReader(deps.In)}
}

// PromptPath asks for the source document. It returns ctx.Err() if ctx is
// done before a line arrives.
func (s *Session) PromptPath(ctx context.Context) (string, error) {
	fmt.Fprint(s.deps.Out, "Enter the full path to the PDF file: ")
	line, err := s.readLine(ctx)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(s.deps.Out)
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read path: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Run collects the slices for req.Doc and writes each of them. Slices that
// fail to write are reported and skipped; Run only fails if ctx is done,
// including while it waits for input.
func (s *Session) Run(ctx context.Context, req Request) (Summary, error) {
	out := s.deps.Out
	fmt.Fprintf(out, "Loaded '%s' - %d page(s)\n", req.Name, req.Doc.PageCount())

	intervals, err := s.collect(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	if len(intervals) == 0 {
		fmt.Fprintln(out, "No slices defined - exiting.")
		return Summary{}, nil
	}

	run := history.Run{
		ID:        uuid.NewString(),
		Source:    req.Source,
		PageCount: req.Doc.PageCount(),
		Started:   time.Now(),
	}
	sum := Summary{RunID: run.ID, Requested: len(intervals)}
	logger := log.With().Str("run_id", run.ID).Str("source", req.Source).Logger()

	for i, iv := range intervals {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		n := i + 1
		rec := history.Slice{Index: n, Pages: iv.String()}

		loc, err := s.writeSlice(ctx, req, n, iv)
		if err != nil {
			sum.Failed++
			rec.Error = err.Error()
			metrics.SliceFailed()
			logger.Error().Err(err).Int("slice", n).Str("pages", iv.String()).Msg("slice write failed")
			fmt.Fprintf(out, "Failed to write slice #%d: %v\n", n, cause(err))
		} else {
			sum.Written++
			rec.Location = loc
			logger.Info().Int("slice", n).Str("pages", iv.String()).Str("location", loc).Msg("slice saved")
			fmt.Fprintf(out, "Saved slice #%d -> %s\n", n, loc)
		}
		run.Slices = append(run.Slices, rec)
	}

	fmt.Fprintf(out, "\nAll done! Slices are stored in: %s\n", req.Location)
	run.Finished = time.Now()

	if s.deps.History != nil {
		if err := s.deps.History.Record(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("failed to record run history")
		}
	}
	return sum, nil
}

func (s *Session) collect(ctx context.Context, req Request) ([]splitter.Interval, error) {
	if req.Ranges != nil {
		return s.collectPreset(req), nil
	}

	out := s.deps.Out
	fmt.Fprint(out, "\nDefine page slices you want to extract."+
		"\nEnter ranges like '1-3' or a single page like '5'."+
		"\nWhen you are done, just press Enter on an empty line.\n")

	var intervals []splitter.Interval
	for {
		fmt.Fprintf(out, "Slice #%d: ", len(intervals)+1)
		line, err := s.readLine(ctx)
		if err != nil {
			fmt.Fprintln(out)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		iv, err := s.parse(line, req.Doc.PageCount())
		if err != nil {
			fmt.Fprintf(out, "%v. Please try again.\n", err)
			continue
		}
		intervals = append(intervals, iv)
		s.preview(req.Preview, iv)
	}
	return intervals, nil
}

func (s *Session) collectPreset(req Request) []splitter.Interval {
	var intervals []splitter.Interval
	for _, r := range req.Ranges {
		iv, err := s.parse(r, req.Doc.PageCount())
		if err != nil {
			fmt.Fprintf(s.deps.Out, "Skipping range %q: %v\n", r, err)
			continue
		}
		intervals = append(intervals, iv)
		s.preview(req.Preview, iv)
	}
	return intervals
}

func (s *Session) parse(text string, pageCount int) (splitter.Interval, error) {
	iv, err := splitter.Parse(text, pageCount)
	if err != nil {
		metrics.ObserveRange(splitter.KindOf(err).String())
		return iv, err
	}
	metrics.ObserveRange("accepted")
	return iv, nil
}

func (s *Session) preview(p Previewer, iv splitter.Interval) {
	if p == nil {
		return
	}
	text, err := p.Snippet(iv.Start, previewWidth)
	if err != nil {
		log.Debug().Err(err).Int("page", iv.Start+1).Msg("preview unavailable")
		return
	}
	if text != "" {
		fmt.Fprintf(s.deps.Out, "  page %d starts with: %s\n", iv.Start+1, text)
	}
}

func (s *Session) writeSlice(ctx context.Context, req Request, n int, iv splitter.Interval) (string, error) {
	start := time.Now()
	sl := splitter.Extract(req.Doc, iv)

	var buf bytes.Buffer
	if err := s.deps.Writer.Write(&buf, sl); err != nil {
		var we *splitter.WriteError
		if errors.As(err, &we) {
			we.Slice = n
			return "", we
		}
		return "", &splitter.WriteError{Slice: n, Err: err}
	}

	loc, err := req.Sink.Save(ctx, output.SliceFileName(req.Stem, n, iv), buf.Bytes())
	if err != nil {
		return "", &splitter.WriteError{Slice: n, Err: err}
	}
	metrics.SliceWritten(sl.Len(), time.Since(start))
	return loc, nil
}

// readLine waits for the next input line or for ctx to be done. A read
// abandoned on cancellation stays pending and feeds the next call, so no
// input is lost and only one read is ever in flight.
func (s *Session) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pending == nil {
		ch := make(chan lineResult, 1)
		s.pending = ch
		go func() {
			line, err := s.read()
			ch <- lineResult{line: line, err: err}
		}()
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-s.pending:
		s.pending = nil
		return r.line, r.err
	}
}

// read returns the next line without its terminator. A final line
// without a newline is returned before io.EOF.
func (s *Session) read() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cause(err error) error {
	var we *splitter.WriteError
	if errors.As(err, &we) && we.Err != nil {
		return we.Err
	}
	return err
}
