package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/loykin/termctl/internal/rpc"
	"github.com/loykin/termctl/internal/session"
)

// maxLineBytes bounds one request line; tool arguments are small, but a
// generous cap avoids truncating pasted content.
const maxLineBytes = 1 << 20

// Stdio runs the line-oriented transport loop: one request per input line,
// one flushed response per request, strictly sequential. Request-level
// failures become error envelopes; only a transport I/O failure ends Serve.
type Stdio struct {
	sess *session.Session
	in   io.Reader
	out  io.Writer
	log  *slog.Logger
}

func NewStdio(sess *session.Session, in io.Reader, out io.Writer) *Stdio {
	return &Stdio{sess: sess, in: in, out: out, log: slog.Default()}
}

// SetLogger replaces the transport logger.
func (s *Stdio) SetLogger(l *slog.Logger) { s.log = l }

// Serve reads requests until EOF or a transport error. Blank lines are
// skipped; undecodable lines produce a ParseError envelope with a null id,
// since no correlation id could be recovered. A line over maxLineBytes is
// drained and answered the same way: bad input is a request-level failure,
// never a reason to end the session.
func (s *Stdio) Serve(ctx context.Context) error {
	r := bufio.NewReaderSize(s.in, 64*1024)
	w := bufio.NewWriter(s.out)

	for {
		line, overflow, err := readLine(r)
		if err != nil && err != io.EOF {
			return fmt.Errorf("read request: %w", err)
		}

		switch {
		case overflow:
			s.log.Warn("request line too long", "limit_bytes", maxLineBytes)
			if werr := s.write(w, rpc.NewError(nil, rpc.CodeParseError, "Parse error: request line too long")); werr != nil {
				return fmt.Errorf("write response: %w", werr)
			}
		case len(bytes.TrimSpace(line)) == 0:
			// blank line, nothing to answer
		default:
			var resp rpc.Response
			req, derr := rpc.Decode(line)
			if derr != nil {
				s.log.Warn("undecodable request line", "error", derr)
				resp = rpc.NewError(nil, rpc.CodeParseError, "Parse error: "+derr.Error())
			} else {
				resp = s.sess.Handle(ctx, req)
			}
			if werr := s.write(w, resp); werr != nil {
				return fmt.Errorf("write response: %w", werr)
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

// readLine reads one newline-terminated request line. A line longer than
// maxLineBytes is consumed to its end and reported as overflowed, so the
// caller can answer it and keep the loop alive.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var line []byte
	overflow := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !overflow {
			line = append(line, chunk...)
			if len(line) > maxLineBytes {
				line = nil
				overflow = true
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return bytes.TrimRight(line, "\r\n"), overflow, err
	}
}

func (s *Stdio) write(w *bufio.Writer, resp rpc.Response) error {
	body, err := rpc.Encode(resp)
	if err != nil {
		// Encoding our own response should not fail; degrade to a bare
		// internal error rather than dropping the response slot.
		s.log.Error("response encode failed", "error", err)
		body, _ = rpc.Encode(rpc.NewError(resp.ID, rpc.CodeInternalError, "response encoding failed"))
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
