package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer implements the ticket API contract in memory. Tests use
// its event log to assert what actually went over the wire and in what
// order.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	nextTicketID  int64
	nextMessageID int64
	tickets       map[int64]*Ticket
	messages      map[int64][]Message
	typing        map[int64]map[Role]bool
	roles         map[string]Role // token -> role

	events          []string
	failSnapshots   bool
	failSends       bool
	snapshotGate    map[int64]chan struct{}
	snapshotStarted chan struct{}
	sendGate        chan struct{}
	sendStarted     chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		t:            t,
		tickets:      make(map[int64]*Ticket),
		messages:     make(map[int64][]Message),
		typing:       make(map[int64]map[Role]bool),
		roles:        make(map[string]Role),
		snapshotGate: make(map[int64]chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tickets", f.handleCreate)
	mux.HandleFunc("GET /tickets/admin", f.handleAdminList)
	mux.HandleFunc("PATCH /tickets/admin/{id}", f.handleUpdateStatus)
	mux.HandleFunc("DELETE /tickets/admin/{id}", f.handleDelete)
	mux.HandleFunc("GET /tickets/{id}", f.handleGet)
	mux.HandleFunc("GET /tickets/{id}/messages", f.handleSnapshot)
	mux.HandleFunc("POST /tickets/{id}/messages", f.handleSend)
	mux.HandleFunc("POST /tickets/{id}/typing/{role}", f.handleTyping)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) client() *Client {
	return New(f.srv.URL)
}

func (f *fakeServer) clientAs(token string, role Role) *Client {
	f.mu.Lock()
	f.roles[token] = role
	f.mu.Unlock()
	c := New(f.srv.URL)
	c.SetToken(token)
	return c
}

func (f *fakeServer) addTicket(subject, category, status string) *Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTicketID++
	ticket := &Ticket{
		ID:        f.nextTicketID,
		Subject:   subject,
		Category:  category,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.tickets[ticket.ID] = ticket
	f.messages[ticket.ID] = []Message{}
	f.typing[ticket.ID] = map[Role]bool{}
	return ticket
}

func (f *fakeServer) addMessage(ticketID int64, role Role, text string) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendMessageLocked(ticketID, role, text, nil, nil)
}

func (f *fakeServer) appendMessageLocked(ticketID int64, role Role, text string, attachment, attachmentType *string) Message {
	f.nextMessageID++
	message := Message{
		ID:             f.nextMessageID,
		TicketID:       ticketID,
		SenderRole:     role,
		Message:        text,
		Attachment:     attachment,
		AttachmentType: attachmentType,
		CreatedAt:      time.Now(),
	}
	f.messages[ticketID] = append(f.messages[ticketID], message)
	return message
}

func (f *fakeServer) event(format string, args ...interface{}) {
	f.mu.Lock()
	f.events = append(f.events, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeServer) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// eventIndex returns the index of the first event with the given
// prefix, or -1.
func eventIndex(events []string, prefix string) int {
	for i, event := range events {
		if strings.HasPrefix(event, prefix) {
			return i
		}
	}
	return -1
}

func (f *fakeServer) roleFor(r *http.Request) Role {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	if role, ok := f.roles[token]; ok {
		return role
	}
	return RoleUser
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func (f *fakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject  string `json:"subject"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" || req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Subject and category are required"})
		return
	}
	ticket := f.addTicket(req.Subject, req.Category, StatusOpen)
	f.event("create:%d", ticket.ID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "ticket": ticket})
}

func (f *fakeServer) handleGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	ticket, ok := f.tickets[pathID(r)]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Ticket not found"})
		return
	}
	f.event("get:%d", ticket.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "ticket": ticket})
}

func (f *fakeServer) handleAdminList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	tickets := []Ticket{}
	for _, ticket := range f.tickets {
		tickets = append(tickets, *ticket)
	}
	f.mu.Unlock()
	f.event("list")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tickets": tickets})
}

func (f *fakeServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	status, ok := NormalizeStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown status"})
		return
	}
	f.mu.Lock()
	ticket, found := f.tickets[pathID(r)]
	if found {
		ticket.Status = status
		ticket.UpdatedAt = time.Now()
	}
	f.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Ticket not found"})
		return
	}
	f.event("status:%d:%s", ticket.ID, status)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "ticket": ticket})
}

func (f *fakeServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	f.mu.Lock()
	ticket, found := f.tickets[id]
	if found && !CanDeleteStatus(ticket.Status) {
		f.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "only Resolved or Closed tickets may be deleted"})
		return
	}
	delete(f.tickets, id)
	delete(f.messages, id)
	f.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Ticket not found"})
		return
	}
	f.event("delete:%d", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Ticket deleted"})
}

func (f *fakeServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	f.mu.Lock()
	gate := f.snapshotGate[id]
	started := f.snapshotStarted
	fail := f.failSnapshots
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.snapshotStarted = nil
		f.mu.Unlock()
	}
	if gate != nil {
		<-gate
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load messages"})
		return
	}

	f.mu.Lock()
	messages := append([]Message(nil), f.messages[id]...)
	typing := Typing{User: f.typing[id][RoleUser], Admin: f.typing[id][RoleAdmin]}
	f.mu.Unlock()

	f.event("snapshot:%d", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": messages,
		"typing":   typing,
	})
}

func (f *fakeServer) handleSend(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	role := f.roleFor(r)

	f.mu.Lock()
	started := f.sendStarted
	gate := f.sendGate
	fail := f.failSends
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.sendStarted = nil
		f.mu.Unlock()
	}
	if gate != nil {
		<-gate
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to store message"})
		return
	}

	var text string
	var attachment, attachmentType *string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid multipart body"})
			return
		}
		text = strings.TrimSpace(r.FormValue("message"))
		file, header, err := r.FormFile("attachment")
		if err == nil {
			file.Close()
			path := "/public/uploads/" + header.Filename
			declared := header.Header.Get("Content-Type")
			attachment = &path
			attachmentType = &declared
		}
	} else {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
		text = strings.TrimSpace(req.Message)
	}

	if text == "" && attachment == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message text or attachment is required"})
		return
	}

	f.mu.Lock()
	message := f.appendMessageLocked(id, role, text, attachment, attachmentType)
	f.mu.Unlock()

	f.event("send:%s:%q:attach=%v", role, text, attachment != nil)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": message})
}

func (f *fakeServer) handleTyping(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	flagRole := Role(r.PathValue("role"))

	if callerRole := f.roleFor(r); callerRole != flagRole {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot set another role's typing flag"})
		return
	}

	var req struct {
		Typing bool `json:"typing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	f.mu.Lock()
	if f.typing[id] == nil {
		f.typing[id] = map[Role]bool{}
	}
	f.typing[id][flagRole] = req.Typing
	f.mu.Unlock()

	f.event("typing:%s:%v", flagRole, req.Typing)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
