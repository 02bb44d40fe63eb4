// Package server exposes the canvas commands over a websocket so that a
// browser-based editor can save, load and list projects.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/commands"
	"github.com/folish/folish/pkg/logging"
)

const (
	// maxMessageSize bounds one request, canvas included.
	maxMessageSize = 64 << 20

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	writeTimeout      = 10 * time.Second
)

// Request is one command sent by a client.
type Request struct {
	ID   string           `json:"id"`
	Cmd  commands.Command `json:"cmd"`
	Args json.RawMessage  `json:"args,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Server serves GET /ws and GET /healthz.
type Server struct {
	svc      *commands.Service
	logger   *logging.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	// Advertise is called with the bound port once the listener is up.
	// It returns a function that withdraws the advertisement.
	Advertise func(port int) (func() error, error)
}

// New creates a Server for svc. A nil logger discards output.
func New(svc *commands.Service, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if s.Advertise != nil {
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
			withdraw, err := s.Advertise(tcp.Port)
			if err != nil {
				s.logger.Warnf("mdns advertisement failed: %v", err)
			} else {
				defer func() {
					if err := withdraw(); err != nil {
						s.logger.Warnf("mdns shutdown: %v", err)
					}
				}()
			}
		}
	}

	serveErr := make(chan error, 1)
	s.logger.Infof("listening on %s", ln.Addr())
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Debugf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	s.logger.Infof("client connected from %s", r.RemoteAddr)
	c := &client{conn: conn, logger: s.logger}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warnf("client %s: %v", r.RemoteAddr, err)
			} else {
				s.logger.Infof("client %s disconnected", r.RemoteAddr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.send(Response{Error: "binary messages are not supported"})
			continue
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.send(Response{Error: fmt.Sprintf("Invalid request: %v", err)})
			continue
		}
		args, err := commands.DecodeArgs(req.Args)
		if err != nil {
			c.send(Response{ID: req.ID, Error: fmt.Sprintf("Deserialization failed: %v", err)})
			continue
		}

		wg.Add(1)
		results := s.svc.Invoke(req.Cmd, args)
		go func(id string) {
			defer wg.Done()
			c.send(respond(id, <-results))
		}(req.ID)
	}
}

func respond(id string, res commands.Result) Response {
	if res.Err != nil {
		return Response{ID: id, Error: res.Err.Error()}
	}

	var (
		raw []byte
		err error
	)
	if doc, ok := res.Value.(canvas.State); ok {
		raw, err = canvas.Encode(doc)
	} else {
		raw, err = json.Marshal(res.Value)
	}
	if err != nil {
		return Response{ID: id, Error: fmt.Sprintf("Serialization failed: %v", err)}
	}
	return Response{ID: id, OK: true, Result: raw}
}

// client serializes writes to one connection.
type client struct {
	conn   *websocket.Conn
	logger *logging.Logger
	mu     sync.Mutex
}

func (c *client) send(resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(resp); err != nil {
		c.logger.Debugf("write to %s failed: %v", c.conn.RemoteAddr(), err)
	}
}
