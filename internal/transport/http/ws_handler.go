package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/auth"
	"github.com/linwc/talkwire-server/internal/core"
	"github.com/linwc/talkwire-server/internal/proto"
)

const (
	// StatusSessionReplaced tells the client a newer connection for the same
	// user took over.
	StatusSessionReplaced websocket.StatusCode = 4000
	// StatusInvalidPath is sent when a websocket upgrade hits an unknown route.
	StatusInvalidPath websocket.StatusCode = 4004
)

// WSHandler upgrades HTTP connections, authenticates them and bridges them
// to a core.Session.
type WSHandler struct {
	auth      *auth.Service
	registry  *core.Registry
	router    *core.Router
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. rateLimit caps inbound frames
// per minute per connection; zero disables the cap.
func NewWSHandler(authService *auth.Service, registry *core.Registry, router *core.Router, rateLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		auth:      authService,
		registry:  registry,
		router:    router,
		rateLimit: rateLimit,
		log:       logger,
	}
}

// wsCredential pulls the token from the Authorization header, falling back to
// the "token" query parameter for clients that cannot set upgrade headers.
func wsCredential(r *stdhttp.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	claims, err := h.auth.VerifyToken(wsCredential(r))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		conn.Close(websocket.StatusPolicyViolation, "invalid credentials")
		return
	}

	sess := core.NewSession(claims.UserID, uuid.NewString())
	h.registry.Register(sess)
	defer h.registry.Unregister(sess)

	h.log.Info().Int64("user_id", sess.UserID).Str("session_id", sess.ID).Msg("ws session opened")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	if sess.Reason() == core.CloseReplaced {
		h.log.Info().Int64("user_id", sess.UserID).Str("session_id", sess.ID).Msg("ws session replaced")
		conn.Close(StatusSessionReplaced, "session replaced")
		return
	}

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errSessionClosed) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Int64("user_id", sess.UserID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// errSessionClosed signals a session torn down through the registry rather
// than by the peer.
var errSessionClosed = errors.New("session closed")

// websocketUpgrade reports whether the request is asking for a websocket
// upgrade.
func websocketUpgrade(r *stdhttp.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// closeInvalidPath accepts a stray upgrade just long enough to close it with
// StatusInvalidPath.
func closeInvalidPath(w stdhttp.ResponseWriter, r *stdhttp.Request, logger *zerolog.Logger) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Debug().Err(err).Str("path", r.URL.Path).Msg("ws accept on unknown path failed")
		return
	}
	conn.Close(StatusInvalidPath, "invalid websocket path")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	limiter := newRateLimiter(h.rateLimit)
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Warn().Int64("user_id", sess.UserID).Msg("ws rate limit exceeded, dropping frame")
			continue
		}

		result, err := h.router.Route(ctx, sess.UserID, raw)
		if err != nil {
			if core.IsSilentDrop(err) {
				h.log.Debug().Err(err).Int64("user_id", sess.UserID).Msg("dropped inbound frame")
			} else {
				h.log.Warn().Err(err).Int64("user_id", sess.UserID).Msg("failed to route inbound frame")
			}
			continue
		}

		if result.Keepalive {
			sess.TrySend([]byte(proto.KeepalivePong))
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	for {
		select {
		case frame := <-sess.Outbound():
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				h.log.Error().Err(err).Int64("user_id", sess.UserID).Msg("write ws frame")
				return err
			}
		case <-sess.Done():
			// Drain anything queued before the close raced in.
			for {
				select {
				case frame := <-sess.Outbound():
					if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
						return err
					}
				default:
					return errSessionClosed
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
