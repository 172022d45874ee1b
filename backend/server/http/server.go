package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/adwski/chatapp/backend/model"
	"github.com/adwski/chatapp/backend/service"
)

const (
	defaultShutdownDeadline = 10 * time.Second
	defaultReadHeaderTimout = 5 * time.Second
	defaultMaxBodySize      = 1 << 20
)

var (
	ErrUnexpected = errors.New("unexpected server error")
	ErrBadRequest = errors.New("malformed request")
)

type (
	ChatService interface {
		ListUsers(ctx context.Context) ([]model.User, error)
		GetUser(ctx context.Context, id int64) (model.User, error)
		SearchUsers(ctx context.Context, name string) ([]model.User, error)
		CreateUser(ctx context.Context, in service.CreateUserInput) (model.User, error)
		LoginUser(ctx context.Context, in service.LoginInput) (service.AuthPayload, error)
		UpdateUser(ctx context.Context, id int64, in service.UpdateUserInput) (model.User, error)
		DeleteUser(ctx context.Context, id int64) (model.User, error)

		ListChats(ctx context.Context) ([]model.Chat, error)
		GetChat(ctx context.Context, id int64) (model.Chat, error)
		ListUserChats(ctx context.Context, userID int64) ([]model.Chat, error)
		CreateChat(ctx context.Context, in service.CreateChatInput) (model.Chat, error)
		UpdateChat(ctx context.Context, id int64, in service.UpdateChatInput) (model.Chat, error)
		DeleteChat(ctx context.Context, id int64) (model.Chat, error)
		AddUsersToChat(ctx context.Context, chatID int64, in service.ChatUsersInput) (model.Chat, error)
		RemoveUsersFromChat(ctx context.Context, chatID int64, in service.ChatUsersInput) (model.Chat, error)
		RenameGroupChat(ctx context.Context, id int64, in service.RenameChatInput) (model.Chat, error)
		DeleteGroupChat(ctx context.Context, id int64) (model.Chat, error)
		AddMessageToChat(ctx context.Context, chatID int64, in service.PostMessageInput) (model.Message, error)

		ListMessages(ctx context.Context) ([]model.Message, error)
		GetMessage(ctx context.Context, id int64) (model.Message, error)
		ListChatMessages(ctx context.Context, chatID int64) ([]model.Message, error)
		CreateMessage(ctx context.Context, in service.CreateMessageInput) (model.Message, error)
		SendMessage(ctx context.Context, chatID int64, in service.PostMessageInput) (model.Message, error)
		UpdateMessage(ctx context.Context, id int64, in service.UpdateMessageInput) (model.Message, error)
		DeleteMessage(ctx context.Context, id int64) (model.Message, error)
	}

	GenericResponse struct {
		Message string      `json:"message,omitempty"`
		Error   string      `json:"error,omitempty"`
		Data    interface{} `json:"data,omitempty"`
	}

	Server struct {
		logger zerolog.Logger
		svc    ChatService
		*http.Server
	}

	Config struct {
		Logger        *zerolog.Logger
		ChatService   ChatService
		ListenAddr    string
		AllowedOrigin string
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:    cfg.ChatService,
	}

	srv.Server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.routes(cfg.AllowedOrigin),
		ReadHeaderTimeout: defaultReadHeaderTimout,
	}
	return srv
}

func (srv *Server) routes(allowedOrigin string) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(srv.logRequest)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:         86400,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", srv.loginUser)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", srv.listUsers)
			r.Post("/", srv.createUser)
			r.Get("/search", srv.searchUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getUser)
				r.Put("/", srv.updateUser)
				r.Delete("/", srv.deleteUser)
				r.Get("/chats", srv.listUserChats)
			})
		})

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", srv.listChats)
			r.Post("/", srv.createChat)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getChat)
				r.Put("/", srv.updateChat)
				r.Delete("/", srv.deleteChat)
				r.Put("/name", srv.renameGroupChat)
				r.Delete("/group", srv.deleteGroupChat)
				r.Post("/users", srv.addUsersToChat)
				r.Delete("/users", srv.removeUsersFromChat)
				r.Get("/messages", srv.listChatMessages)
				r.Post("/messages", srv.sendMessage)
				r.Post("/latest", srv.addMessageToChat)
			})
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", srv.listMessages)
			r.Post("/", srv.createMessage)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getMessage)
				r.Put("/", srv.updateMessage)
				r.Delete("/", srv.deleteMessage)
			})
		})
	})
	return r
}

func (srv *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		srv.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request served")
	})
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
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
}

func (srv *Server) respond(w http.ResponseWriter, code int, resp *GenericResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	srv.writeBytes(w, code, b)
}

func (srv *Server) ok(w http.ResponseWriter, data any) {
	srv.respond(w, http.StatusOK, &GenericResponse{Message: "OK", Data: data})
}

// fail maps service errors onto status codes.
func (srv *Server) fail(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		srv.logger.Error().Err(err).Msg("request failed")
		srv.respond(w, code, &GenericResponse{Error: ErrUnexpected.Error()})
		return
	}
	srv.respond(w, code, &GenericResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict), errors.Is(err, service.ErrNotGroupChat):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (srv *Server) writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		srv.logger.Debug().Err(err).Msg("failed to write response")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, defaultMaxBodySize)).Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(ErrBadRequest, errors.New("invalid id"))
	}
	return id, nil
}
