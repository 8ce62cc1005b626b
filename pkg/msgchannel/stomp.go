package msgchannel

import (
	"bytes"
	"strconv"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

const acceptVersion = "1.2,1.1,1.0"

// Message is a MESSAGE frame delivered to a subscription.
type Message struct {
	Destination  string
	Subscription string
	ContentType  string
	Body         []byte
	Header       *frame.Header
}

func encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode parses one socket message. A heart-beat yields a nil frame.
func decode(data []byte) (*frame.Frame, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return frame.NewReader(bytes.NewReader(data)).Read()
}

func connectFrame(host, token string, heartbeat time.Duration) *frame.Frame {
	hb := formatHeartBeat(heartbeat, heartbeat)
	f := frame.New(frame.CONNECT,
		frame.AcceptVersion, acceptVersion,
		frame.Host, host,
		frame.HeartBeat, hb,
	)
	if token != "" {
		f.Header.Add("Authorization", "Bearer "+token)
	}
	return f
}

func subscribeFrame(id, destination string) *frame.Frame {
	return frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, destination,
		frame.Ack, "auto",
	)
}

func unsubscribeFrame(id string) *frame.Frame {
	return frame.New(frame.UNSUBSCRIBE, frame.Id, id)
}

func sendFrame(destination, contentType string, body []byte) *frame.Frame {
	f := frame.New(frame.SEND,
		frame.Destination, destination,
		frame.ContentType, contentType,
		frame.ContentLength, strconv.Itoa(len(body)),
	)
	f.Body = body
	return f
}

func formatHeartBeat(out, in time.Duration) string {
	return strconv.FormatInt(out.Milliseconds(), 10) + "," + strconv.FormatInt(in.Milliseconds(), 10)
}

// negotiate returns the outgoing and incoming heart-beat intervals agreed
// from our CONNECT offer and the server's CONNECTED reply. Zero disables
// a direction.
func negotiate(offer time.Duration, connected *frame.Frame) (out, in time.Duration) {
	value := connected.Header.Get(frame.HeartBeat)
	if value == "" || offer <= 0 {
		return 0, 0
	}
	sx, sy, err := frame.ParseHeartBeat(value)
	if err != nil {
		return 0, 0
	}
	if sy > 0 {
		out = max(offer, sy)
	}
	if sx > 0 {
		in = max(offer, sx)
	}
	return out, in
}
