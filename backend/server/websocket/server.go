package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/adwski/chatapp/backend/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultOutboundQueueSize = 256

	defaultWebsocketReadBufferSize     = 10000
	defaultWebsocketWriteBufferSize    = 10000
	defaultWebSocketMaxMessageSize     = 64 << 10
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second

	SocketPath = "/socket"
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// SignalingService accepts inbound events in arrival order.
	SignalingService interface {
		Submit(ctx context.Context, ev model.Event) error
	}

	Config struct {
		Logger           *zerolog.Logger
		Hub              *Hub
		SignalingService SignalingService
		ListenAddr       string
		AllowedOrigin    string
		QueueSize        int
	}

	Server struct {
		svc SignalingService
		hub *Hub
		ws  *websocket.Upgrader
		*http.Server

		connCtx     context.Context
		cancelConns context.CancelFunc
		connWg      *sync.WaitGroup
		queueSize   int

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	qs := cfg.QueueSize
	if qs <= 0 {
		qs = defaultOutboundQueueSize
	}
	connCtx, cancelConns := context.WithCancel(context.Background())
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:    cfg.SignalingService,
		hub:    cfg.Hub,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      checkOrigin(cfg.AllowedOrigin),
		},
		connCtx:     connCtx,
		cancelConns: cancelConns,
		connWg:      &sync.WaitGroup{},
		queueSize:   qs,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+SocketPath, srv.signal)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
	srv.closeConnections()
}

// closeConnections terminates every live socket and waits for their handlers.
func (srv *Server) closeConnections() {
	srv.cancelConns()
	srv.connWg.Wait()
}

func (srv *Server) signal(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied with an error status
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(model.ConnID(uuid.NewString()), srv.queueSize, &srv.logger)
	srv.hub.add(sess)
	sess.logger.Debug().Str("remote", r.RemoteAddr).Msg("connection accepted")

	ctx, cancel := context.WithCancel(srv.connCtx) // long-living connection context

	srv.connWg.Add(1)
	go func() {
		defer srv.connWg.Done()
		srv.handleWSConn(ctx, cancel, conn, sess)
	}()
}

func (srv *Server) destroySession(sess *session) {
	// Drop connection from the table before the switch broadcasts
	// updated presence, so the closing socket is not a recipient.
	srv.hub.remove(sess.id)

	// Disconnect is never dropped: it waits for queue space
	// and fails only when signaling is stopped.
	err := srv.svc.Submit(context.Background(), model.Disconnect{Inbound: model.Inbound{ConnID: sess.id}})
	if err != nil {
		sess.logger.Warn().Err(err).Msg("failed to submit disconnect")
		return
	}
	sess.logger.Debug().Msg("connection closed")
}

func (srv *Server) handleWSConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	sess *session,
) {
	wg := &sync.WaitGroup{}

	wg.Add(2)
	go func() {
		srv.webSocketReceiver(ctx, wg, conn, sess)
		cancel()
	}()
	go func() {
		webSocketSender(ctx, wg, conn, sess.tx, &sess.logger)
		cancel()
	}()

	<-ctx.Done()
	webSocketCloser(conn, &sess.logger) // unblocks receiver
	wg.Wait()
	srv.destroySession(sess)
}

func webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	tx <-chan []byte,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
				break SendLoop
			}
			logger.Trace().Msg("ping sent")

		case frame := <-tx:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsW, wsErr := conn.NextWriter(websocket.TextMessage)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to get websocket text writer")
				break SendLoop
			}
			_, wsErr = wsW.Write(frame)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing frame")
				break SendLoop
			}
			wsErr = wsW.Close()
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to close websocket writer")
				break SendLoop
			}
		}
	}
}

func (srv *Server) webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	sess *session,
) {
	defer wg.Done()
	logger := &sess.logger

	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	err := readDeadLineFunc(defaultPongWait)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

	for {
		_, msg, wsErr := conn.ReadMessage()
		if wsErr != nil {
			switch {
			case ctx.Err() != nil:
			case websocket.IsCloseError(wsErr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived):
				logger.Debug().Err(wsErr).Msg("connection closed by peer")
			default:
				logger.Warn().Err(wsErr).Msg("unexpected error during receive")
			}
			return
		}

		var env model.Envelope
		if wsErr = json.Unmarshal(msg, &env); wsErr != nil {
			logger.Warn().Err(wsErr).Msg("failed to unmarshal incoming frame")
			continue
		}
		ev, wsErr := model.Decode(sess.id, env)
		if wsErr != nil {
			logger.Warn().Err(wsErr).Msg("incoming event dropped")
			continue
		}
		if wsErr = srv.svc.Submit(ctx, ev); wsErr != nil {
			logger.Debug().Err(wsErr).Msg("cannot submit event, closing connection")
			return
		}
	}
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil && !errors.Is(wsErr, websocket.ErrCloseSent) {
		logger.Debug().Err(wsErr).Msg("failed to send close frame")
	}
	if wsErr = conn.Close(); wsErr != nil {
		logger.Debug().Err(wsErr).Msg("failed to close websocket connection")
	}
}

// checkOrigin allows handshakes only from allowed origin, "*" or empty allows all.
// Requests without Origin header are not browser requests and are let through.
func checkOrigin(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimSuffix(strings.TrimSpace(allowed), "/")
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return strings.EqualFold(strings.TrimSuffix(origin, "/"), allowed)
	}
}
