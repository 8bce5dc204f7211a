package httpchannel

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/silkfinik/fairsplit/internal/remote"
)

// SubscribeGroups opens a websocket stream of group snapshots for userID.
// Each frame on the socket is the full current set of groups the user
// belongs to.
func (c *Client) SubscribeGroups(ctx context.Context, userID string) (remote.GroupSubscription, error) {
	conn, err := c.dial(ctx, "/v1/groups/subscribe?user_id="+userID)
	if err != nil {
		return nil, err
	}

	sub := newStream[[]remote.GroupDoc](ctx, conn)
	return groupStream{sub}, nil
}

// SubscribeExpenses opens a websocket stream of expense snapshots for one
// group.
func (c *Client) SubscribeExpenses(ctx context.Context, groupID string) (remote.ExpenseSubscription, error) {
	conn, err := c.dial(ctx, "/v1/groups/"+groupID+"/expenses/subscribe")
	if err != nil {
		return nil, err
	}

	sub := newStream[[]remote.ExpenseDoc](ctx, conn)
	return expenseStream{sub}, nil
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	header := http.Header{}
	if token := c.session.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	url := wsScheme(c.baseURL) + path
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: c.httpc,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, remote.ErrAuthMissing
		}
		return nil, remote.Transient("dial "+path, err)
	}
	conn.SetReadLimit(8 << 20)
	return conn, nil
}

func wsScheme(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return baseURL
}

// stream pumps JSON frames of type T from a websocket connection into a
// channel until the connection fails or Cancel is called. The snapshots
// channel is closed on exit; Err reports the terminal error, nil when the
// subscription was cancelled.
type stream[T any] struct {
	snapshots chan T
	cancel    context.CancelFunc
	conn      *websocket.Conn

	done chan struct{}
	err  error
}

func newStream[T any](ctx context.Context, conn *websocket.Conn) *stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &stream[T]{
		snapshots: make(chan T, 1),
		cancel:    cancel,
		conn:      conn,
		done:      make(chan struct{}),
	}
	go s.readLoop(ctx)
	return s
}

func (s *stream[T]) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.snapshots)
	defer s.conn.Close(websocket.StatusNormalClosure, "")

	for {
		var frame T
		if err := wsjson.Read(ctx, s.conn, &frame); err != nil {
			// Cancellation is a clean shutdown, not a stream failure.
			if ctx.Err() == nil {
				s.err = remote.Transient("read snapshot", err)
			}
			return
		}
		select {
		case s.snapshots <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (s *stream[T]) Err() error {
	<-s.done
	return s.err
}

func (s *stream[T]) Cancel() {
	s.cancel()
	<-s.done
}

type groupStream struct{ *stream[[]remote.GroupDoc] }

func (g groupStream) Snapshots() <-chan []remote.GroupDoc { return g.snapshots }

type expenseStream struct{ *stream[[]remote.ExpenseDoc] }

func (e expenseStream) Snapshots() <-chan []remote.ExpenseDoc { return e.snapshots }
