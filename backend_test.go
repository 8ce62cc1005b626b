package roomsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/roomsync/pkg/connection"
	"github.com/dmitrymomot/roomsync/pkg/logger"
)

const sessionCookie = "abc"

type published struct {
	destination string
	body        string
}

type stompSub struct {
	id          string
	destination string
}

// backend fakes the API, the event stream and a STOMP broker.
type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	roomPages []string
	unread    bool

	roomHits         atomic.Int32
	unreadHits       atomic.Int32
	notificationHits atomic.Int32

	stream   chan string
	subs     chan stompSub
	sent     chan published
	toClient chan *frame.Frame
	done     chan struct{}
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{
		t: t,
		roomPages: []string{
			`[{"id":1,"unreadCount":2,"lastMessage":"hello","lastMessageTimeUtc":"2024-05-01T10:00:00"},` +
				`{"id":2,"unreadCount":0,"lastMessage":"later","lastMessageTimeUtc":"2024-05-01T11:00:00"}]`,
			`[{"id":3,"postTitle":"Tent"}]`,
		},
		stream:   make(chan string, 8),
		subs:     make(chan stompSub, 8),
		sent:     make(chan published, 8),
		toClient: make(chan *frame.Frame, 8),
		done:     make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("SESSION"); err != nil || c.Value != sessionCookie {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/api/chat/rooms", b.rooms)
	r.Get("/api/notifications/unread", func(w http.ResponseWriter, r *http.Request) {
		b.unreadHits.Add(1)
		b.mu.Lock()
		defer b.mu.Unlock()
		fmt.Fprintf(w, `{"hasUnread":%t}`, b.unread)
	})
	r.Get("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		b.notificationHits.Add(1)
		_, _ = io.WriteString(w, `{"content":[{"id":1,"type":"RESERVATION_ACCEPTED","isRead":true,"payload":{"postInfo":{"postId":1,"title":"Tent"},"reservationInfo":{"reservationId":2,"nickname":"mina"}}}],"page":{"page":0,"size":10,"hasNext":false}}`)
	})
	r.Get("/api/notifications/subscribe", b.eventStream)
	r.Get("/ws-stomp", b.broker)

	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	t.Cleanup(func() { close(b.done) })
	return b
}

func (b *backend) setUnread(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unread = v
}

func (b *backend) rooms(w http.ResponseWriter, r *http.Request) {
	b.roomHits.Add(1)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	b.mu.Lock()
	pages := b.roomPages
	b.mu.Unlock()

	content := "[]"
	if page < len(pages) {
		content = pages[page]
	}
	fmt.Fprintf(w, `{"content":%s,"page":{"page":%d,"size":20,"hasNext":%t}}`, content, page, page+1 < len(pages))
}

func (b *backend) eventStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	_, _ = io.WriteString(w, "data:connected\n\n")
	w.(http.Flusher).Flush()

	for {
		select {
		case data := <-b.stream:
			_, _ = io.WriteString(w, "data:"+data+"\n\n")
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		case <-b.done:
			return
		}
	}
}

func (b *backend) broker(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"v12.stomp"}})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for {
			select {
			case f := <-b.toClient:
				var sb strings.Builder
				if err := frame.NewWriter(&sb).Write(f); err != nil {
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, []byte(sb.String())); err != nil {
					return
				}
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		f, err := frame.NewReader(strings.NewReader(string(data))).Read()
		if err != nil || f == nil {
			continue
		}
		switch f.Command {
		case frame.CONNECT:
			b.toClient <- frame.New(frame.CONNECTED, frame.Version, "1.2", frame.HeartBeat, "0,0")
		case frame.SUBSCRIBE:
			b.subs <- stompSub{id: f.Header.Get(frame.Id), destination: f.Header.Get(frame.Destination)}
		case frame.SEND:
			b.sent <- published{destination: f.Header.Get(frame.Destination), body: string(f.Body)}
		case frame.DISCONNECT:
			return
		}
	}
}

// fakeTransport stands in for a message channel in tests that do not need
// a socket.
type fakeTransport struct {
	mu        sync.Mutex
	closed    bool
	published []published
}

func (f *fakeTransport) State() connection.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return connection.StateClosed
	}
	return connection.StateOpen
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Publish(_ context.Context, destination string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{destination, string(body)})
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func fakeConnector(transports ...*fakeTransport) (connection.Connector, *atomic.Int32) {
	var dials atomic.Int32
	return connection.ConnectorFunc(func(ctx context.Context, _ connection.Credentials) (connection.Transport, error) {
		i := int(dials.Add(1)) - 1
		if i >= len(transports) {
			return nil, fmt.Errorf("unexpected dial %d", i+1)
		}
		// Widen the window for concurrent acquires.
		time.Sleep(10 * time.Millisecond)
		return transports[i], nil
	}), &dials
}

func newTestClient(t *testing.T, b *backend, opts ...Option) *Client {
	t.Helper()

	base := []Option{
		WithHTTPClient(b.srv.Client()),
		WithLogger(logger.Discard()),
	}
	c, err := New(DefaultConfig(b.srv.URL), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

func credentials() connection.Credentials {
	return SessionCredentials("7", &http.Cookie{Name: "SESSION", Value: sessionCookie})
}
