package handlers

import (
	"net/http"
	"strconv"

	"github.com/diagnosis/portfolio/pkg/response"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// SubmitContact handles the public contact form.
func (h *Handlers) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.IPAddress = getClientIP(r)
	req.UserAgent = r.UserAgent()

	c, err := h.contactService.Submit(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, http.StatusCreated, map[string]interface{}{
		"message": "Thank you for your message! I'll get back to you soon.",
		"data":    map[string]string{"contactId": c.ID},
	})
}

func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parsePagination(r)
	f := domain.ListFilter{
		ProjectType: q.Get("projectType"),
		Search:      q.Get("search"),
		Limit:       limit,
		Offset:      offset,
	}
	f.IncludeSpam, _ = strconv.ParseBool(q.Get("includeSpam"))

	fields := map[string]string{}
	if v := q.Get("status"); v != "" && v != "all" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			fields["status"] = "Invalid status"
		}
		f.Status = &st
	}
	if v := q.Get("priority"); v != "" && v != "all" {
		p, err := domain.ParsePriority(v)
		if err != nil {
			fields["priority"] = "Invalid priority"
		}
		f.Priority = &p
	}
	if len(fields) > 0 {
		response.Validation(w, "Invalid filter", fields)
		return
	}

	list, err := h.contactService.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.OK(w, http.StatusOK, map[string]interface{}{
		"contacts":   list.Contacts,
		"pagination": list.Pagination,
		"stats":      list.Stats,
	})
}

func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contactService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{"data": c})
}

func (h *Handlers) UpdateContactStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.StatusUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.contactService.UpdateStatus(r.Context(), chi.URLParam(r, "id"), currentUserID(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{"data": c})
}

func (h *Handlers) ReplyToContact(w http.ResponseWriter, r *http.Request) {
	var req domain.ReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.contactService.Reply(r.Context(), chi.URLParam(r, "id"), currentUserID(r), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{
		"message": "Reply sent successfully",
		"data":    c,
	})
}

func (h *Handlers) MarkContactSpam(w http.ResponseWriter, r *http.Request) {
	if err := h.contactService.MarkSpam(r.Context(), chi.URLParam(r, "id"), currentUserID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{"message": "Contact marked as spam"})
}

func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.contactService.Delete(r.Context(), chi.URLParam(r, "id"), currentUserID(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]interface{}{"message": "Contact deleted successfully"})
}
