package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/mcp-catalog-go/internal/engine"
	"github.com/ggoodman/mcp-catalog-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-catalog-go/internal/metrics"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
)

const defaultMaxMessageSize = 4 << 20

// ErrAlreadyServing is returned by a second call to Serve.
var ErrAlreadyServing = errors.New("stdio: handler already serving")

// Handler is a single-connection stdio transport that reads newline-delimited
// JSON-RPC messages from an io.Reader and writes responses to an io.Writer.
// By default it uses os.Stdin and os.Stdout.
//
// The handler is transport-only; it delegates all MCP semantics to the
// provided mcpservice.Dispatcher.
type Handler struct {
	r io.Reader
	w io.Writer
	l *slog.Logger

	userProvider UserProvider
	metrics      *metrics.Metrics
	maxMsgSize   int

	eng *engine.Engine

	wmu     sync.Mutex
	serving atomic.Bool
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(d *mcpservice.Dispatcher, opts ...Option) *Handler {
	h := &Handler{
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
		maxMsgSize:   defaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.eng = engine.NewEngine(d, engine.WithLogger(h.l), engine.WithMetrics(h.metrics))
	return h
}

// Serve runs the stdio event loop until EOF on the reader or until ctx is
// canceled. Messages are handled one at a time, in arrival order. EOF is a
// clean shutdown and returns nil.
func (h *Handler) Serve(ctx context.Context) error {
	if !h.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	log := h.l
	if h.userProvider != nil {
		if uid, err := h.userProvider.CurrentUserID(); err == nil {
			log = log.With(slog.String("user", uid))
		}
	}
	log.InfoContext(ctx, "stdio.serve.start")

	frames := make(chan frame)
	readErr := make(chan error, 1)
	go h.readLoop(ctx, frames, readErr)

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "stdio.serve.stop", slog.String("reason", "context"))
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				err := <-readErr
				if err != nil {
					log.ErrorContext(ctx, "stdio.read.fail", slog.String("err", err.Error()))
					return fmt.Errorf("stdio: read: %w", err)
				}
				log.InfoContext(ctx, "stdio.serve.stop", slog.String("reason", "eof"))
				return nil
			}
			if f.size > h.maxMsgSize {
				log.WarnContext(ctx, "stdio.frame.too_large", slog.Int("bytes", f.size), slog.Int("limit", h.maxMsgSize))
				h.write(ctx, log, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest,
					fmt.Sprintf("message exceeds %d bytes", h.maxMsgSize), nil))
				continue
			}
			h.handleLine(ctx, log, f.line)
		}
	}
}

// frame is one newline-terminated input line. Lines longer than the limit
// are drained without being buffered; only their size is kept.
type frame struct {
	line []byte
	size int
}

// readLoop splits the input on '\n' into out and closes it at EOF or on a
// read error. An oversized line is discarded up to its terminator so the
// following messages still parse.
func (h *Handler) readLoop(ctx context.Context, out chan<- frame, errc chan<- error) {
	defer close(out)
	br := bufio.NewReaderSize(h.r, 64*1024)
	var (
		buf  []byte
		size int
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) && !errors.Is(err, io.EOF) {
			errc <- err
			return
		}
		size += len(chunk)
		if size <= h.maxMsgSize+1 {
			buf = append(buf, chunk...)
		} else {
			buf = buf[:0]
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		line := bytes.TrimSpace(buf)
		if err == nil {
			size-- // terminator
		}
		if size > h.maxMsgSize || len(line) > 0 {
			f := frame{size: size}
			if size <= h.maxMsgSize {
				f.line = append([]byte(nil), line...)
			}
			select {
			case out <- f:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		buf, size = buf[:0], 0
		if err != nil {
			errc <- nil
			return
		}
	}
}

func (h *Handler) handleLine(ctx context.Context, log *slog.Logger, line []byte) {
	msg, rpcErr := jsonrpc.Decode(line)
	if rpcErr != nil {
		log.InfoContext(ctx, "stdio.decode.fail", slog.Int("code", int(rpcErr.Code)), slog.String("err", fmt.Sprint(rpcErr.Data)))
		h.write(ctx, log, jsonrpc.ErrorResponse(nil, rpcErr))
		return
	}

	switch msg.Type() {
	case jsonrpc.TypeRequest:
		res, err := h.eng.HandleRequest(ctx, msg.AsRequest())
		if err != nil {
			log.ErrorContext(ctx, "stdio.handle_request.fail", slog.String("err", err.Error()))
		}
		h.write(ctx, log, res)
	case jsonrpc.TypeNotification:
		h.eng.HandleNotification(ctx, msg.AsRequest())
	default:
		// The server never issues requests, so there is nothing to correlate.
		log.DebugContext(ctx, "stdio.response.ignored", slog.String("id", msg.ID.String()))
	}
}

func (h *Handler) write(ctx context.Context, log *slog.Logger, res *jsonrpc.Response) {
	if res == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		log.ErrorContext(ctx, "stdio.encode.fail", slog.String("err", err.Error()))
		b, _ = json.Marshal(jsonrpc.NewErrorResponse(res.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil))
	}
	b = append(b, '\n')

	h.wmu.Lock()
	defer h.wmu.Unlock()
	if _, err := h.w.Write(b); err != nil {
		log.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
	}
}
