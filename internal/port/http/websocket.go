package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 64 * 1024
)

const (
	ActionSetQuery   = "set_query"
	ActionSetFilters = "set_filters"
	ActionSearch     = "search"
	ActionRetry      = "retry"
)

// SearchRequest is a client frame on the search socket.
type SearchRequest struct {
	Action  string               `json:"action"`
	Query   string               `json:"query,omitempty"`
	Filters *entity.FilterConfig `json:"filters,omitempty"`
}

// SearchFrame is a server frame: either a snapshot of the search state or an error.
type SearchFrame struct {
	Type     string                 `json:"type"`
	Snapshot *service.QuerySnapshot `json:"snapshot,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}

// searchConn serializes writes to one socket. Snapshots are coalesced so a slow
// client always receives the latest state.
type searchConn struct {
	ws      *websocket.Conn
	latest  chan service.QuerySnapshot
	errs    chan string
	closing chan struct{}
}

func (c *searchConn) offer(s service.QuerySnapshot) {
	for {
		select {
		case c.latest <- s:
			return
		default:
		}
		select {
		case <-c.latest:
		default:
		}
	}
}

func (c *searchConn) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		var frame SearchFrame
		select {
		case <-c.closing:
			return
		case s := <-c.latest:
			frame = SearchFrame{Type: "snapshot", Snapshot: &s}
		case msg := <-c.errs:
			frame = SearchFrame{Type: "error", Error: msg}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.ws.WriteJSON(frame); err != nil {
			return
		}
	}
}

func (c *searchConn) sendError(msg string) {
	select {
	case c.errs <- msg:
	default:
	}
}

// SearchSocket drives a per-connection query coordinator from client frames and
// streams every state change back.
func (h *Handler) SearchSocket(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warnf("Failed to upgrade search socket: %v", err)
			return
		}
		defer ws.Close()

		coordinator := service.NewQueryCoordinator(h.source, h.log, h.metrics, h.search)
		defer coordinator.Close()

		conn := &searchConn{
			ws:      ws,
			latest:  make(chan service.QuerySnapshot, 1),
			errs:    make(chan string, 4),
			closing: make(chan struct{}),
		}
		unsubscribe := coordinator.Subscribe(conn.offer)
		defer unsubscribe()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			conn.writeLoop()
		}()
		defer func() {
			close(conn.closing)
			<-writerDone
		}()

		conn.offer(coordinator.Snapshot())
		coordinator.Search()

		ws.SetReadLimit(wsMaxMessage)
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			var req SearchRequest
			if err := ws.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debugf("Search socket closed: %v", err)
				}
				return
			}
			h.dispatch(coordinator, conn, req)
		}
	}
}

func (h *Handler) dispatch(c *service.QueryCoordinator, conn *searchConn, req SearchRequest) {
	switch req.Action {
	case ActionSetQuery:
		c.SetQuery(req.Query)
	case ActionSetFilters:
		if req.Filters == nil {
			conn.sendError("filters are required")
			return
		}
		f, err := req.Filters.Normalize()
		if err != nil {
			conn.sendError(err.Error())
			return
		}
		if f.Marketplaces == nil {
			f.Marketplaces = entity.DefaultFilterConfig().Marketplaces
		}
		if err := f.Validate(); err != nil {
			conn.sendError(err.Error())
			return
		}
		c.SetFilters(f)
	case ActionSearch:
		c.Search()
	case ActionRetry:
		c.Retry()
	default:
		conn.sendError("unknown action: " + req.Action)
	}
}
