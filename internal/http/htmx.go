package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Events the pages listen for on the body element.
const (
	EventPendingRefresh = "pending:refresh"
	EventHistoryRefresh = "history:refresh"
	EventModalClose     = "modal:close"
	EventNotification   = "show-notification"
)

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
)

type notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

// Response collects a status, HX-Trigger events and a body, then writes
// them in one go.
type Response struct {
	status int
	header http.Header
	events map[string]any
	body   []byte
}

func NewHTMXResponse() *Response {
	return &Response{status: http.StatusOK, header: http.Header{}}
}

func (r *Response) Status(code int) *Response {
	r.status = code
	return r
}

func (r *Response) Header(name, value string) *Response {
	r.header.Set(name, value)
	return r
}

// Emit adds a payload-less event to HX-Trigger.
func (r *Response) Emit(events ...string) *Response {
	for _, e := range events {
		r.event(e, struct{}{})
	}
	return r
}

// Notify shows a toast. Errors and warnings stay up longer than successes.
func (r *Response) Notify(t NotificationType, message string) *Response {
	duration := 5000
	if t == NotificationSuccess {
		duration = 3000
	}
	return r.event(EventNotification, notification{Type: t, Message: message, Duration: duration})
}

// Resolved refreshes both tables, closes the modal and confirms.
func (r *Response) Resolved(message string) *Response {
	return r.Emit(EventPendingRefresh, EventHistoryRefresh, EventModalClose).
		Notify(NotificationSuccess, message)
}

func (r *Response) event(name string, payload any) *Response {
	if r.events == nil {
		r.events = make(map[string]any)
	}
	r.events[name] = payload
	return r
}

// HTML sets an HTML body.
func (r *Response) HTML(body []byte) *Response {
	r.header.Set("Content-Type", "text/html; charset=utf-8")
	r.body = body
	return r
}

func (r *Response) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range r.header {
		h[name] = values
	}
	if len(r.events) > 0 {
		if b, err := json.Marshal(r.events); err == nil {
			h.Set("HX-Trigger", string(b))
		}
	}
	w.WriteHeader(r.status)
	if len(r.body) > 0 {
		_, _ = w.Write(r.body)
	}
}

// alert is an error response whose body is an escaped alert fragment.
func alert(status int, message string) *Response {
	return NewHTMXResponse().
		Status(status).
		HTML([]byte(`<div class="alert alert-error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}
