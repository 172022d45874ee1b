package http

import (
	"context"
	"net/http"

	"github.com/adwski/chatapp/backend/service"
)

// byID serves endpoints addressed by the {id} path parameter only.
func byID[T any](srv *Server, f func(context.Context, int64) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			srv.fail(w, err)
			return
		}
		out, err := f(r.Context(), id)
		if err != nil {
			srv.fail(w, err)
			return
		}
		srv.ok(w, out)
	}
}

// byIDWithBody serves endpoints taking the {id} path parameter and a JSON body.
func byIDWithBody[In, Out any](srv *Server, f func(context.Context, int64, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			srv.fail(w, err)
			return
		}
		var in In
		if err = decodeBody(w, r, &in); err != nil {
			srv.fail(w, err)
			return
		}
		srv.logger.Trace().Any("request", in).Int64("id", id).Msg("got request")
		out, err := f(r.Context(), id, in)
		if err != nil {
			srv.fail(w, err)
			return
		}
		srv.ok(w, out)
	}
}

func withBody[In, Out any](srv *Server, code int, f func(context.Context, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeBody(w, r, &in); err != nil {
			srv.fail(w, err)
			return
		}
		out, err := f(r.Context(), in)
		if err != nil {
			srv.fail(w, err)
			return
		}
		srv.respond(w, code, &GenericResponse{Message: "OK", Data: out})
	}
}

func list[T any](srv *Server, f func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := f(r.Context())
		if err != nil {
			srv.fail(w, err)
			return
		}
		srv.ok(w, out)
	}
}

func (srv *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list(srv, srv.svc.ListUsers)(w, r)
}

func (srv *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := srv.svc.SearchUsers(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		srv.fail(w, err)
		return
	}
	srv.ok(w, users)
}

func (srv *Server) getUser(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.GetUser)(w, r)
}

func (srv *Server) createUser(w http.ResponseWriter, r *http.Request) {
	withBody(srv, http.StatusCreated, srv.svc.CreateUser)(w, r)
}

func (srv *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	withBody(srv, http.StatusOK, srv.svc.LoginUser)(w, r)
}

func (srv *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.UpdateUser)(w, r)
}

func (srv *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.DeleteUser)(w, r)
}

func (srv *Server) listUserChats(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.ListUserChats)(w, r)
}

func (srv *Server) listChats(w http.ResponseWriter, r *http.Request) {
	list(srv, srv.svc.ListChats)(w, r)
}

func (srv *Server) getChat(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.GetChat)(w, r)
}

func (srv *Server) createChat(w http.ResponseWriter, r *http.Request) {
	withBody(srv, http.StatusCreated, srv.svc.CreateChat)(w, r)
}

func (srv *Server) updateChat(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.UpdateChat)(w, r)
}

func (srv *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.DeleteChat)(w, r)
}

func (srv *Server) renameGroupChat(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.RenameGroupChat)(w, r)
}

func (srv *Server) deleteGroupChat(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.DeleteGroupChat)(w, r)
}

func (srv *Server) addUsersToChat(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.AddUsersToChat)(w, r)
}

func (srv *Server) removeUsersFromChat(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.RemoveUsersFromChat)(w, r)
}

func (srv *Server) listChatMessages(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.ListChatMessages)(w, r)
}

func (srv *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.SendMessage)(w, r)
}

func (srv *Server) addMessageToChat(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.AddMessageToChat)(w, r)
}

func (srv *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	list(srv, srv.svc.ListMessages)(w, r)
}

func (srv *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.GetMessage)(w, r)
}

func (srv *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	withBody(srv, http.StatusCreated, srv.svc.CreateMessage)(w, r)
}

func (srv *Server) updateMessage(w http.ResponseWriter, r *http.Request) {
	byIDWithBody(srv, srv.svc.UpdateMessage)(w, r)
}

func (srv *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	byID(srv, srv.svc.DeleteMessage)(w, r)
}

var _ ChatService = (*service.Service)(nil)
