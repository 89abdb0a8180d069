package http

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/interfaces/http/middleware"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFeedServer(t *testing.T, feed *ProgressFeed, sid string) (*httptest.Server, *websocket.Conn) {
	app := echo.New()
	app.GET("/ws/progress", func(c echo.Context) error {
		c.Set(middleware.SessionContextKey, &domain.SessionModel{ID: sid, Credential: "token-1"})
		return feed.HandleSubscribe(c)
	})
	server := httptest.NewServer(app)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.subs[sid]) == 1
	}, time.Second, 10*time.Millisecond, "subscription must be registered")
	return server, conn
}

func TestProgressFeed_ConcurrentPublishes(t *testing.T) {
	feed := NewProgressFeed(zap.NewNop())
	server, conn := newFeedServer(t, feed, "sid-1")
	defer server.Close()
	defer conn.Close()

	var wg sync.WaitGroup
	for i := 0; i < sendBuffer; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			feed.Publish("sid-1", &ProgressEvent{
				Type:     EventLessonCompleted,
				CourseID: 7,
				ItemID:   n,
			})
		}(i)
	}
	wg.Wait()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := make(map[int]bool)
	for len(seen) < sendBuffer {
		event := new(ProgressEvent)
		require.NoError(t, conn.ReadJSON(event))
		assert.Equal(t, EventLessonCompleted, event.Type)
		assert.Equal(t, 7, event.CourseID)
		seen[event.ItemID] = true
	}
}

func TestProgressFeed_PublishToOtherSessionDeliversNothing(t *testing.T) {
	feed := NewProgressFeed(zap.NewNop())
	server, conn := newFeedServer(t, feed, "sid-1")
	defer server.Close()
	defer conn.Close()

	feed.Publish("sid-other", &ProgressEvent{Type: EventLessonCompleted, CourseID: 7, ItemID: 1})
	feed.Publish("sid-1", &ProgressEvent{Type: EventAssignmentCompleted, CourseID: 7, ItemID: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	event := new(ProgressEvent)
	require.NoError(t, conn.ReadJSON(event))
	assert.Equal(t, EventAssignmentCompleted, event.Type)
	assert.Equal(t, 2, event.ItemID)
}

func TestProgressFeed_DroppedPeerIsUnregistered(t *testing.T) {
	feed := NewProgressFeed(zap.NewNop())
	server, conn := newFeedServer(t, feed, "sid-1")
	defer server.Close()

	conn.Close()

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.subs["sid-1"]) == 0
	}, time.Second, 10*time.Millisecond, "closed peers must be dropped from the feed")

	// publishing to a session with no subscribers is a no-op
	feed.Publish("sid-1", &ProgressEvent{Type: EventLessonCompleted, CourseID: 7, ItemID: 1})
}
