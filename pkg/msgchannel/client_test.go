package msgchannel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/roomsync/pkg/connection"
	"github.com/dmitrymomot/roomsync/pkg/logger"
)

// broker drives the server side of one fakeConn.
type broker struct {
	t    *testing.T
	conn *fakeConn
}

func (b broker) next() *frame.Frame {
	b.t.Helper()
	for {
		select {
		case data := <-b.conn.fromClient:
			f, err := decode(data)
			require.NoError(b.t, err)
			if f == nil {
				continue
			}
			return f
		case <-time.After(2 * time.Second):
			b.t.Fatal("no frame from client")
			return nil
		}
	}
}

func (b broker) accept(heartbeat string) *frame.Frame {
	b.t.Helper()
	f := b.next()
	require.Equal(b.t, frame.CONNECT, f.Command)
	b.conn.send(frame.New(frame.CONNECTED, frame.Version, "1.2", frame.HeartBeat, heartbeat))
	return f
}

func dialer(conns ...*fakeConn) (DialFunc, *atomic.Int32) {
	var n atomic.Int32
	return func(ctx context.Context) (Conn, error) {
		i := int(n.Add(1)) - 1
		if i >= len(conns) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return conns[i], nil
	}, &n
}

func TestClientSubscribeAndPublish(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dial, _ := dialer(conn)
	got := make(chan Message, 1)

	c := New(dial,
		WithHost("example.com"),
		WithToken("tkn"),
		WithLogger(logger.Discard()),
		WithOnConnect(func(ctx context.Context, c *Client) {
			_, err := c.Subscribe(ctx, "/sub/notifications/7", func(_ context.Context, m Message) { got <- m })
			assert.NoError(t, err)
		}),
	)
	require.NoError(t, c.Start(context.Background()))
	b := broker{t: t, conn: conn}

	connect := b.accept("0,0")
	assert.Equal(t, acceptVersion, connect.Header.Get(frame.AcceptVersion))
	assert.Equal(t, "example.com", connect.Header.Get(frame.Host))
	assert.Equal(t, "4000,4000", connect.Header.Get(frame.HeartBeat))
	assert.Equal(t, "Bearer tkn", connect.Header.Get("Authorization"))

	sub := b.next()
	require.Equal(t, frame.SUBSCRIBE, sub.Command)
	assert.Equal(t, "/sub/notifications/7", sub.Header.Get(frame.Destination))
	id := sub.Header.Get(frame.Id)
	require.NotEmpty(t, id)

	msg := frame.New(frame.MESSAGE,
		frame.Subscription, id,
		frame.Destination, "/sub/notifications/7",
		frame.ContentType, "application/json",
	)
	msg.Body = []byte(`{"type":"NEW_ROOM"}`)
	conn.send(msg)

	select {
	case m := <-got:
		assert.Equal(t, "/sub/notifications/7", m.Destination)
		assert.JSONEq(t, `{"type":"NEW_ROOM"}`, string(m.Body))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	assert.True(t, c.Connected())
	assert.Equal(t, connection.StateOpen, c.State())
	assert.Equal(t, 1, c.Subscriptions())

	require.NoError(t, c.Publish(context.Background(), "/pub/chat/message/3", []byte(`{"roomId":3}`)))
	send := b.next()
	assert.Equal(t, frame.SEND, send.Command)
	assert.Equal(t, "/pub/chat/message/3", send.Header.Get(frame.Destination))
	assert.Equal(t, "application/json", send.Header.Get(frame.ContentType))
	assert.JSONEq(t, `{"roomId":3}`, string(send.Body))

	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.Phase())
	assert.True(t, conn.isClosed())
	assert.ErrorIs(t, c.Publish(context.Background(), "/x", nil), ErrNotConnected)
}

func TestClientUnsubscribe(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dial, _ := dialer(conn)
	connected := make(chan struct{})
	c := New(dial, WithLogger(logger.Discard()), WithOnConnect(func(context.Context, *Client) { close(connected) }))
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	b := broker{t: t, conn: conn}
	b.accept("0,0")
	<-connected

	unsubscribe, err := c.Subscribe(context.Background(), "/topic/a", func(context.Context, Message) {})
	require.NoError(t, err)
	sub := b.next()

	unsubscribe()
	unsubscribe()
	unsub := b.next()
	assert.Equal(t, frame.UNSUBSCRIBE, unsub.Command)
	assert.Equal(t, sub.Header.Get(frame.Id), unsub.Header.Get(frame.Id))
	assert.Equal(t, 0, c.Subscriptions())
}

func TestClientNotConnected(t *testing.T) {
	t.Parallel()

	dial, _ := dialer()
	c := New(dial, WithLogger(logger.Discard()))

	unsubscribe, err := c.Subscribe(context.Background(), "/topic/a", func(context.Context, Message) {})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotPanics(t, unsubscribe)

	assert.ErrorIs(t, c.Publish(context.Background(), "/topic/a", []byte("{}")), ErrNotConnected)
	assert.Equal(t, connection.StateConnecting, c.State())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)
}

func TestClientReconnectsAfterErrorFrame(t *testing.T) {
	t.Parallel()

	first, second := newFakeConn(), newFakeConn()
	dial, dials := dialer(first, second)

	var connects atomic.Int32
	c := New(dial,
		WithLogger(logger.Discard()),
		WithReconnectDelay(10*time.Millisecond),
		WithOnConnect(func(context.Context, *Client) { connects.Add(1) }),
	)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	broker{t: t, conn: first}.accept("0,0")
	require.Eventually(t, func() bool { return connects.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	first.send(frame.New(frame.ERROR, frame.Message, "session expired"))

	broker{t: t, conn: second}.accept("0,0")
	require.Eventually(t, func() bool { return connects.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, first.isClosed())
	assert.Equal(t, int32(2), dials.Load())
	assert.True(t, c.Connected())
}

func TestClientDropsSilentSocket(t *testing.T) {
	t.Parallel()

	first, second := newFakeConn(), newFakeConn()
	dial, _ := dialer(first, second)
	c := New(dial,
		WithLogger(logger.Discard()),
		WithHeartbeat(20*time.Millisecond),
		WithReconnectDelay(time.Millisecond),
	)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	connect := broker{t: t, conn: first}.accept("20,0")
	assert.Equal(t, "20,20", connect.Header.Get(frame.HeartBeat))

	// The broker never speaks again; the client gives up on the socket
	// after twice the incoming interval and dials the second one.
	broker{t: t, conn: second}.accept("0,0")
	assert.True(t, first.isClosed())
}

func TestClientSendsHeartbeats(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dial, _ := dialer(conn)
	c := New(dial, WithLogger(logger.Discard()), WithHeartbeat(10*time.Millisecond))
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	broker{t: t, conn: conn}.accept("0,10")

	select {
	case data := <-conn.fromClient:
		assert.Equal(t, "\n", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("no heart-beat")
	}
}

func TestClientHandshakeRejected(t *testing.T) {
	t.Parallel()

	first, second := newFakeConn(), newFakeConn()
	dial, _ := dialer(first, second)
	c := New(dial, WithLogger(logger.Discard()), WithReconnectDelay(time.Millisecond))
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	b := broker{t: t, conn: first}
	require.Equal(t, frame.CONNECT, b.next().Command)
	first.send(frame.New(frame.ERROR, frame.Message, "bad credentials"))

	broker{t: t, conn: second}.accept("0,0")
	require.Eventually(t, c.Connected, 2*time.Second, 5*time.Millisecond)
	assert.True(t, first.isClosed())
}
