package contact

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"perfumery-notify/internal/common/pagination"
	"perfumery-notify/internal/domain/entity"
	"perfumery-notify/internal/handler/http/respond"
	"perfumery-notify/internal/repository"
	contactUC "perfumery-notify/internal/usecase/contact"
)

// RegisterInbox mounts the operator routes for stored messages. They live
// outside /contact-messages, which is public.
func RegisterInbox(r chi.Router, svc contactUC.Service) {
	r.Method(http.MethodGet, "/inbox", InboxListHandler{Svc: svc, Pages: pagination.DefaultConfig()})
	r.Route("/inbox/{id}", func(r chi.Router) {
		r.Method(http.MethodGet, "/", InboxHandler{svc})
		r.Method(http.MethodPost, "/read", MarkReadHandler{svc})
	})
}

// InboxListHandler returns a page of stored messages, newest first.
// ?unread=true restricts the page to messages nobody has read yet.
type InboxListHandler struct {
	Svc   contactUC.Service
	Pages pagination.Config
}

func (h InboxListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseQueryParams(r, h.Pages)
	if err != nil {
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	filter := repository.ContactMessageFilter{}
	if v := r.URL.Query().Get("unread"); v != "" {
		if filter.UnreadOnly, err = strconv.ParseBool(v); err != nil {
			respond.SafeError(w, http.StatusBadRequest, &entity.ValidationError{Field: "unread", Message: "must be true or false"})
			return
		}
	}

	msgs, total, err := h.Svc.List(r.Context(), params, filter)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, pagination.NewResponse(msgs, pagination.NewMetadata(params, total)))
}

// InboxHandler returns one stored message.
type InboxHandler struct{ Svc contactUC.Service }

func (h InboxHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	msg, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeInboxError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, msg)
}

// MarkReadHandler flags a message as read.
type MarkReadHandler struct{ Svc contactUC.Service }

func (h MarkReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.MarkRead(r.Context(), id); err != nil {
		writeInboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.SafeError(w, http.StatusBadRequest, &entity.ValidationError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func writeInboxError(w http.ResponseWriter, err error) {
	if errors.Is(err, contactUC.ErrMessageNotFound) {
		respond.JSON(w, http.StatusNotFound, map[string]string{"error": "contact message not found"})
		return
	}
	respond.SafeError(w, http.StatusInternalServerError, err)
}
