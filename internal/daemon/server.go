package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// maxRequestSize bounds one newline-delimited request.
const maxRequestSize = 64 << 20

// RequestHandler handles incoming RPC requests.
type RequestHandler interface {
	Handle(ctx context.Context, req Request) Response
}

// Server listens on a Unix socket and serves newline-delimited JSON-RPC
// requests. A connection may send many requests; after subscribe it also
// receives readiness notifications.
type Server struct {
	socketPath  string
	idleTimeout time.Duration
	listener    net.Listener
	handler     RequestHandler
	logger      *slog.Logger

	mu          sync.Mutex
	shutdown    bool
	subscribers map[*serverConn]struct{}
	wg          sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
// idleTimeout closes connections that send nothing for that long, except
// subscribed ones. Zero disables it.
func NewServer(socketPath string, idleTimeout time.Duration, logger *slog.Logger) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	return &Server{
		socketPath:  socketPath,
		idleTimeout: idleTimeout,
		logger:      logging.OrDefault(logger),
		subscribers: make(map[*serverConn]struct{}),
	}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.logger.Warn("socket_chmod_failed", slog.String("error", err.Error()))
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server_listening", slog.String("socket", s.socketPath))

	connCtx, cancelConns := context.WithCancel(ctx)
	defer cancelConns()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(connCtx, conn)
		}()
	}

	cancelConns()
	s.wg.Wait()

	return ctx.Err()
}

// serverConn serializes writes from the request loop and broadcasts.
type serverConn struct {
	conn net.Conn
	wmu  sync.Mutex
	enc  *json.Encoder
}

func (c *serverConn) write(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.enc.Encode(v)
}

// handleConnection reads requests until EOF, the idle timeout or shutdown.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	sc := &serverConn{conn: conn, enc: json.NewEncoder(conn)}
	defer func() {
		s.unsubscribe(sc)
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	reader := bufio.NewReaderSize(conn, 64<<10)
	subscribed := false
	for {
		if s.idleTimeout > 0 && !subscribed {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}

		line, err := readLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Debug("connection_closed", slog.String("error", err.Error()))
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if werr := sc.write(NewErrorResponse(nil, ErrCodeParseError, "failed to parse request")); werr != nil {
				return
			}
			continue
		}

		var resp Response
		switch {
		case req.Method == "":
			resp = NewErrorResponse(req.ID, ErrCodeInvalidRequest, "method is required")
		case req.Method == MethodSubscribe:
			// Acknowledge before joining so no notification precedes the reply.
			if err := sc.write(NewSuccessResponse(req.ID, true)); err != nil {
				return
			}
			s.subscribe(sc)
			subscribed = true
			continue
		case s.handler == nil:
			resp = NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
		default:
			resp = s.handler.Handle(ctx, req)
		}

		if len(req.ID) == 0 && resp.Error == nil {
			continue
		}
		if err := sc.write(resp); err != nil {
			s.logger.Debug("response_write_failed", slog.String("error", err.Error()))
			return
		}
	}
}

// readLine returns the next newline-terminated line without the newline.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxRequestSize {
			return nil, fmt.Errorf("request exceeds %d bytes", maxRequestSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

func (s *Server) subscribe(c *serverConn) {
	s.mu.Lock()
	s.subscribers[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unsubscribe(c *serverConn) {
	s.mu.Lock()
	delete(s.subscribers, c)
	s.mu.Unlock()
}

// Subscribers returns the number of subscribed connections.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Broadcast pushes n to every subscribed connection. Connections that fail
// to accept it are closed.
func (s *Server) Broadcast(n Notification) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.subscribers))
	for c := range s.subscribers {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.write(n); err != nil {
			s.logger.Debug("broadcast_failed", slog.String("error", err.Error()))
			s.unsubscribe(c)
			_ = c.conn.Close()
		}
	}
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		return listener.Close()
	}
	return nil
}
