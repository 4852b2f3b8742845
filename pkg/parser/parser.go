// Package parser implements streaming envelope parsing: one JSON envelope
// per line, with tab-indented continuation lines carrying the previous
// envelope's inline payload, and a "str" side channel interning repeated
// strings (long filenames, mostly) that later envelopes reference by index.
package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/tracenav/tracenav/internal/model"
)

// ErrContextCanceled is returned when parsing is interrupted by the caller.
var ErrContextCanceled = errors.New("parser: context canceled")

// Config controls buffer sizing and diagnostics.
type Config struct {
	// BufferSize is the read-buffer size in bytes. Graph dumps make for very
	// long lines, so the default is generous.
	BufferSize int

	// Logger receives skip diagnostics at Debug level. Optional.
	Logger *zap.Logger
}

// DefaultConfig returns the standard parser configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 1 << 20}
}

// Parser reads a structured trace log and emits envelopes. It owns the
// string-intern table for the whole source file: "str" envelopes feed it and
// are consumed here, never emitted downstream.
type Parser struct {
	cfg     Config
	logger  *zap.Logger
	interns map[uint32]string

	lines   uint64
	skipped uint64
}

// New creates a parser.
func New(cfg Config) *Parser {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		cfg:     cfg,
		logger:  logger,
		interns: make(map[uint32]string),
	}
}

// StringTable returns the intern table accumulated so far. The map is owned
// by the parser; callers must not mutate it while parsing is in flight.
func (p *Parser) StringTable() map[uint32]string { return p.interns }

// SkippedLines reports how many lines were discarded as unparseable.
func (p *Parser) SkippedLines() uint64 { return p.skipped }

// Parse reads envelopes from r and sends them to out. It returns when the
// input is exhausted or the context is canceled. out is not closed; the
// caller owns the channel.
//
// Line discipline: a line starting with a tab is a payload continuation for
// the most recent envelope. Any other line must contain a JSON object; a
// leading log-header prefix before the first '{' is tolerated and stripped.
// Unparseable lines are skipped with a debug diagnostic, never an error.
func (p *Parser) Parse(ctx context.Context, r io.Reader, out chan<- *model.Envelope) error {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)

	var pending *model.Envelope
	var payload bytes.Buffer

	flush := func() error {
		if pending == nil {
			return nil
		}
		if payload.Len() > 0 {
			s := payload.String()
			pending.Payload = &s
			payload.Reset()
		}
		env := pending
		pending = nil
		select {
		case out <- env:
			return nil
		case <-ctx.Done():
			return ErrContextCanceled
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ErrContextCanceled
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) == 0 && err == io.EOF {
			break
		}
		p.lines++

		if len(line) > 0 && line[0] == '\t' {
			// Payload continuation. A payload line with no envelope to
			// attach to is dropped.
			if pending != nil {
				payload.Write(bytes.TrimRight(line[1:], "\n"))
				payload.WriteByte('\n')
			} else {
				p.skip("payload line without envelope")
			}
			if err == io.EOF {
				break
			}
			continue
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}

		// Strip any log-header prefix before the envelope object.
		if start := bytes.IndexByte(trimmed, '{'); start > 0 {
			trimmed = trimmed[start:]
		} else if start < 0 {
			p.skip("no JSON object on line")
			if err == io.EOF {
				break
			}
			continue
		}

		if ferr := flush(); ferr != nil {
			return ferr
		}

		env := new(model.Envelope)
		if uerr := json.Unmarshal(trimmed, env); uerr != nil {
			p.skip(uerr.Error())
			env = nil
		} else if env.Kind() == "str" {
			p.intern(env)
			env = nil
		}
		if env != nil {
			p.resolveFrames(env)
			pending = env
		}

		if err == io.EOF {
			break
		}
	}

	return flush()
}

func (p *Parser) intern(env *model.Envelope) {
	var entry model.StrEntry
	if err := json.Unmarshal(env.Str, &entry); err != nil {
		p.skip("malformed string-table entry: " + err.Error())
		return
	}
	p.interns[entry.Index] = entry.Text
}

// resolveFrames replaces intern-index filenames in the envelope's stack with
// the interned text. Unresolvable indices are left for the marshaller's
// "(unknown)" fallback.
func (p *Parser) resolveFrames(env *model.Envelope) {
	if env.Stack == nil {
		return
	}
	frames := *env.Stack
	for i := range frames {
		f := &frames[i]
		if f.Filename == "" && f.FilenameIndex != nil {
			if text, ok := p.interns[*f.FilenameIndex]; ok {
				f.Filename = text
			}
		}
	}
}

func (p *Parser) skip(reason string) {
	p.skipped++
	p.logger.Debug("skipping line",
		zap.Uint64("line", p.lines),
		zap.String("reason", reason))
}
