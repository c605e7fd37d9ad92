package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// checkOrigin already ran
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 16),
		server: s,
	}
	s.register(client)

	go client.writePump()
	client.readPump()
}

// checkOrigin accepts same-origin requests and the configured dev hosts.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	if originURL.Host == r.Host {
		return true
	}
	for _, allowed := range []string{
		s.opts.Addr(),
		"localhost:" + portString(s.opts.Port),
		"127.0.0.1:" + portString(s.opts.Port),
	} {
		if originURL.Host == allowed {
			return true
		}
	}
	return false
}

// ClientCount returns the number of connected browsers.
func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

func (s *Server) register(c *Client) {
	s.clientsMutex.Lock()
	s.clients[c.conn] = c
	count := len(s.clients)
	s.clientsMutex.Unlock()
	s.logger.Debug(context.Background(), "live reload client connected", "clients", count)
}

func (s *Server) unregister(conn *websocket.Conn) {
	s.clientsMutex.Lock()
	client, ok := s.clients[conn]
	if ok {
		delete(s.clients, conn)
		close(client.send)
	}
	count := len(s.clients)
	s.clientsMutex.Unlock()

	if ok {
		s.logger.Debug(context.Background(), "live reload client disconnected", "clients", count)
	}
}

// broadcast queues message for every client. Clients whose queue is full
// are dropped.
func (s *Server) broadcast(message []byte) {
	var failed []*websocket.Conn

	s.clientsMutex.RLock()
	for conn, client := range s.clients {
		select {
		case client.send <- message:
		default:
			failed = append(failed, conn)
		}
	}
	s.clientsMutex.RUnlock()

	for _, conn := range failed {
		s.unregister(conn)
		conn.Close(websocket.StatusPolicyViolation, "too slow")
	}
}

func (s *Server) closeClients() {
	s.clientsMutex.Lock()
	clients := s.clients
	s.clients = make(map[*websocket.Conn]*Client)
	s.clientsMutex.Unlock()

	for conn, client := range clients {
		close(client.send)
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// readPump discards client messages until the connection closes.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister(c.conn)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && status != -1 {
				c.server.logger.Debug(context.Background(), "websocket read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump pumps messages to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.server.logger.Debug(ctx, "websocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
