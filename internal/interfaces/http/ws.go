package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/interfaces/http/middleware"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// progress event kinds pushed over the feed
const (
	EventLessonCompleted     = "lesson_completed"
	EventAssignmentCompleted = "assignment_completed"
)

var (
	writeWait    = 10 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = pongWait * 9 / 10
)

const sendBuffer = 16

// ProgressEvent completion notification for the learner's open tabs
type ProgressEvent struct {
	Type     string                `json:"type"`
	CourseID int                   `json:"course_id"`
	ItemID   int                   `json:"item_id"`
	Progress *domain.ProgressModel `json:"progress"`
}

// subscriber one websocket connection of a session. Every frame the
// connection sends goes through writeRoutine, fed by the send queue; the
// connection allows at most one concurrent writer.
type subscriber struct {
	conn *websocket.Conn
	send chan *ProgressEvent
}

// ProgressFeed fan out completion events to every websocket subscribed by a
// session. A session can hold several tabs, each with its own connection.
type ProgressFeed struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]bool
}

// NewProgressFeed .
func NewProgressFeed(logger *zap.Logger) *ProgressFeed {
	return &ProgressFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			HandshakeTimeout: 3 * time.Second,
		},
		logger: logger,
		subs:   make(map[string]map[*subscriber]bool),
	}
}

// HandleSubscribe upgrade the request and stream completion events until the
// peer goes away
func (pf *ProgressFeed) HandleSubscribe(c echo.Context) error {
	sess := middleware.CurrentSession(c)
	conn, err := pf.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan *ProgressEvent, sendBuffer),
	}
	pf.register(sess.ID, sub)
	go pf.writeRoutine(sess.ID, sub)
	go pf.drainRoutine(sess.ID, sub)
	return nil
}

// Publish queue an event for every connection of the session. A peer whose
// queue is full is dropped, the feed never blocks a completion request.
func (pf *ProgressFeed) Publish(sid string, event *ProgressEvent) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	for sub := range pf.subs[sid] {
		select {
		case sub.send <- event:
		default:
			pf.logger.Debug("Dropping slow progress feed subscriber")
			pf.removeLocked(sid, sub)
		}
	}
}

func (pf *ProgressFeed) register(sid string, sub *subscriber) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pf.subs[sid] == nil {
		pf.subs[sid] = make(map[*subscriber]bool)
	}
	pf.subs[sid][sub] = true
}

func (pf *ProgressFeed) unregister(sid string, sub *subscriber) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	pf.removeLocked(sid, sub)
}

// removeLocked idempotent removal; send is closed exactly once, under mu, so
// Publish never hits a closed channel
func (pf *ProgressFeed) removeLocked(sid string, sub *subscriber) {
	conns, ok := pf.subs[sid]
	if !ok || !conns[sub] {
		return
	}
	delete(conns, sub)
	if len(conns) == 0 {
		delete(pf.subs, sid)
	}
	close(sub.send)
}

// writeRoutine the single writer of the connection: drains the event queue
// and keeps the heartbeat going
func (pf *ProgressFeed) writeRoutine(sid string, sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		pf.unregister(sid, sub)
		sub.conn.Close()
	}()
	for {
		select {
		case event, ok := <-sub.send:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteJSON(event); err != nil {
				pf.logger.Debug("Dropping progress feed subscriber", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// drainRoutine the feed is write-only, incoming frames are discarded until
// the peer closes
func (pf *ProgressFeed) drainRoutine(sid string, sub *subscriber) {
	conn := sub.conn
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	defer pf.unregister(sid, sub)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
