// ABOUTME: Timestamped request/response exchange with the reference server
// ABOUTME: HTTP and WebSocket transports sharing one reply format
package clocksync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/clocksync-go/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// ClientTimestampHeader carries the client's send timestamp
	ClientTimestampHeader = "X-Client-Timestamp"

	// RequestIDHeader carries an id for correlating client and server logs
	RequestIDHeader = "X-Request-Id"

	// maxReplyBytes caps a reply; two int64 stamps and a comma fit easily
	maxReplyBytes = 64
)

// exchanger performs one round trip. It must read the local clock exactly
// twice: right before sending and right after the reply is consumed
type exchanger interface {
	exchange(ctx context.Context, requestID string) (Sample, error)
}

// httpExchanger sends GET / with the timestamp in a header
type httpExchanger struct {
	url    string
	client *http.Client
	now    func() int64
}

func (x *httpExchanger) exchange(ctx context.Context, requestID string) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.url, nil)
	if err != nil {
		return Sample{}, &TransportError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	sent := x.now()
	req.Header.Set(ClientTimestampHeader, strconv.FormatInt(sent, 10))

	resp, err := x.client.Do(req)
	if err != nil {
		return Sample{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Sample{}, &TransportError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes+1))
	received := x.now()
	if err != nil {
		return Sample{}, &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(body) > maxReplyBytes {
		return Sample{}, &IntegrityError{Sent: sent, Body: string(body)}
	}

	remote, err := parseReply(string(body), sent)
	if err != nil {
		return Sample{}, err
	}

	return Sample{Sent: sent, Received: received, Remote: remote}, nil
}

// wsExchanger opens one WebSocket connection per exchange. The send stamp is
// taken after the handshake so dialing does not count towards the round trip
type wsExchanger struct {
	url    string
	dialer *websocket.Dialer
	now    func() int64
	logger *zap.Logger
}

func (x *wsExchanger) exchange(ctx context.Context, requestID string) (Sample, error) {
	header := http.Header{"User-Agent": []string{version.UserAgent()}}
	if requestID != "" {
		header.Set(RequestIDHeader, requestID)
	}

	conn, resp, err := x.dialer.DialContext(ctx, x.url, header)
	if err != nil {
		te := &TransportError{Err: fmt.Errorf("dial failed: %w", err)}
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			te.StatusCode = resp.StatusCode
		}
		return Sample{}, te
	}
	defer conn.Close()

	// Unblock reads and writes when the caller gives up
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	conn.SetReadLimit(maxReplyBytes)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	sent := x.now()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(strconv.FormatInt(sent, 10))); err != nil {
		return Sample{}, &TransportError{Err: fmt.Errorf("failed to send timestamp: %w", err)}
	}

	msgType, data, err := conn.ReadMessage()
	received := x.now()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return Sample{}, &TransportError{Err: fmt.Errorf("failed to read reply: %w", err)}
	}
	if msgType != websocket.TextMessage {
		return Sample{}, &IntegrityError{Sent: sent, Body: fmt.Sprintf("<binary %d bytes>", len(data))}
	}

	remote, err := parseReply(string(data), sent)
	if err != nil {
		return Sample{}, err
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		x.logger.Debug("close frame not sent", zap.Error(err))
	}

	return Sample{Sent: sent, Received: received, Remote: remote}, nil
}

// parseReply checks a "<echoed>,<remote>" body against the stamp that was
// sent and returns the remote stamp
func parseReply(body string, sent int64) (int64, error) {
	echoed, remote, ok := strings.Cut(body, ",")
	if !ok {
		return 0, &IntegrityError{Sent: sent, Body: body}
	}

	echoedStamp, err := ParseStamp(echoed)
	if err != nil || echoedStamp != sent {
		return 0, &IntegrityError{Sent: sent, Body: body}
	}

	remoteStamp, err := ParseStamp(remote)
	if err != nil {
		return 0, &IntegrityError{Sent: sent, Body: body}
	}

	return remoteStamp, nil
}

// ParseStamp parses a wire timestamp: unsigned decimal digits that fit in an
// int64, with no sign or whitespace
func ParseStamp(s string) (int64, error) {
	v, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func newRequestID() string {
	return uuid.NewString()
}
