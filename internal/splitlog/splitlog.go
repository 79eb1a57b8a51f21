// Package splitlog routes the physical lines of a compilation log into the
// header, body, class-load and assembly streams the later stages consume.
package splitlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"jitscope/internal/diag"
	"jitscope/internal/telemetry"
)

// Markers recognised by the splitter.
const (
	BodyStart       = "<tty>"
	CDATAStart      = "<![CDATA["
	CDATAEnd        = "]]>"
	CDATAEmpty      = "<![CDATA[]]>"
	LoadedPrefix    = "[Loaded "
	UnifiedLoadTag  = "[class,load]"
	NMethodOpen     = "<nmethod"
	NMethodClose    = "</nmethod>"
	PrintNMethod    = "<print_nmethod"
	PrintNMethodEnd = "</print_nmethod>"
)

const defaultMaxLineSize = 16 << 20

// ErrOpenLog wraps failures to open the input file.
var ErrOpenLog = errors.New("open log")

// Line is one line of a stream together with its 1-based position in the
// original file.
type Line struct {
	Num  int
	Text string
}

// Result holds the four streams in file order.
type Result struct {
	Header    []Line
	Body      []Line
	ClassLoad []Line
	Assembly  []Line
	// Lines is the number of physical lines read.
	Lines int
	// Skipped counts lines dropped after a classification failure.
	Skipped int
}

// Options configures a Splitter.
type Options struct {
	Reporter diag.Reporter
	Counters *telemetry.Counters
	Logger   log.FieldLogger
	// Charset names the input encoding (IANA name). Empty or UTF-8 reads the
	// input as is.
	Charset string
	// MaxLineSize bounds a single physical line; default 16 MiB.
	MaxLineSize int
}

// Splitter classifies lines one at a time. Once the body marker has been
// seen it never returns to header mode.
type Splitter struct {
	opts   Options
	inBody bool
	res    Result
}

// New returns a Splitter in header mode.
func New(opts Options) *Splitter {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Splitter{opts: opts}
}

// InBody reports whether the body marker has been seen.
func (s *Splitter) InBody() bool {
	return s.inBody
}

// Feed classifies one physical line. A line that fails classification is
// reported and skipped.
func (s *Splitter) Feed(num int, text string) {
	s.res.Lines++
	defer func() {
		if r := recover(); r != nil {
			s.res.Skipped++
			s.opts.Counters.SkippedLine()
			diag.Warn(s.opts.Reporter, diag.SplitLineSkipped, diag.Location{Line: num}, fmt.Sprint(r))
			s.opts.Logger.WithField("line", num).Warnf("skipping unclassifiable line: %v", r)
		}
	}()
	s.classify(num, text)
}

// Result returns the streams collected so far.
func (s *Splitter) Result() *Result {
	res := s.res
	return &res
}

func (s *Splitter) classify(num int, text string) {
	if !s.inBody {
		if strings.TrimSpace(text) == BodyStart {
			s.inBody = true
			return
		}
		s.emit(&s.res.Header, telemetry.StreamHeader, num, text)
		return
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return
	case trimmed == CDATAEmpty || trimmed == CDATAStart || trimmed == CDATAEnd:
		return
	case strings.HasPrefix(trimmed, CDATAStart):
		s.classify(num, strings.TrimPrefix(trimmed, CDATAStart))
		return
	case strings.HasSuffix(trimmed, CDATAEnd) && !strings.HasPrefix(trimmed, "<"):
		s.classify(num, strings.TrimSuffix(trimmed, CDATAEnd))
		return
	case strings.HasPrefix(text, "<"):
		s.emit(&s.res.Body, telemetry.StreamBody, num, text)
		return
	case isClassLoad(text):
		s.emit(&s.res.ClassLoad, telemetry.StreamClassLoad, num, text)
		return
	}

	if idx := midLineTag(text); idx > 0 {
		diag.Info(s.opts.Reporter, diag.SplitMidLineTag, diag.Location{Line: num},
			fmt.Sprintf("splitting at column %d", idx))
		s.emit(&s.res.Assembly, telemetry.StreamAssembly, num, text[:idx])
		s.classify(num, text[idx:])
		return
	}

	s.emit(&s.res.Assembly, telemetry.StreamAssembly, num, text)
}

func (s *Splitter) emit(dst *[]Line, stream string, num int, text string) {
	*dst = append(*dst, Line{Num: num, Text: text})
	s.opts.Counters.Line(stream)
}

func isClassLoad(text string) bool {
	if strings.HasPrefix(text, LoadedPrefix) {
		return true
	}
	return strings.HasPrefix(text, "[") && strings.Contains(text, UnifiedLoadTag)
}

// midLineTag returns the position of a native method tag written onto the
// tail of an assembly fragment, or -1.
func midLineTag(text string) int {
	best := -1
	for _, marker := range []string{NMethodOpen, NMethodClose, PrintNMethod, PrintNMethodEnd} {
		idx := strings.Index(text, marker)
		if idx > 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}

// Split reads r to the end and returns the classified streams. A read error
// is returned together with everything classified before it.
func Split(r io.Reader, opts Options) (*Result, error) {
	r, err := decodeCharset(r, opts.Charset)
	if err != nil {
		return nil, err
	}
	maxLine := opts.MaxLineSize
	if maxLine <= 0 {
		maxLine = defaultMaxLineSize
	}

	s := New(opts)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	num := 0
	for sc.Scan() {
		num++
		s.Feed(num, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		diag.Error(opts.Reporter, diag.IOReadLog, diag.Location{Line: num + 1}, err.Error())
		return s.Result(), fmt.Errorf("read log after line %d: %w", num, err)
	}
	return s.Result(), nil
}

// SplitFile opens path and splits it.
func SplitFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		diag.Error(opts.Reporter, diag.IOOpenLog, diag.Location{}, err.Error())
		return nil, fmt.Errorf("%w %s: %w", ErrOpenLog, path, err)
	}
	defer f.Close()
	return Split(f, opts)
}

func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q is not supported", charset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
