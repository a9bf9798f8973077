package smsdrop

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	testEmail    = "ops@example.com"
	testPassword = "s3cret-pass"
)

// fakeAPI is an in-process smsdrop server for client tests.
type fakeAPI struct {
	server *httptest.Server

	mu           sync.Mutex
	logins       int
	unauthorized int
	issued       int
	valid        map[string]bool
	rejectAll    bool
	credits      int
	ignoreLimit  bool
	failWith     int
	campaigns    map[string]map[string]interface{}
	order        []string
	created      []map[string]interface{}
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		valid:     make(map[string]bool),
		credits:   1000,
		campaigns: make(map[string]map[string]interface{}),
	}

	r := chi.NewRouter()
	r.Post("/api/v1/auth/jwt/login", f.login)
	r.Group(func(r chi.Router) {
		r.Use(f.authenticate)
		r.Get("/api/v1/users/me", f.me)
		r.Get("/api/v1/subscription", f.subscription)
		r.Get("/api/v1/campaigns/", f.listCampaigns)
		r.Post("/api/v1/campaigns/", f.createCampaign)
		r.Post("/api/v1/campaigns/retry", f.retryCampaign)
		r.Get("/api/v1/campaigns/{id}", f.getCampaign)
	})

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) baseURL() string {
	return f.server.URL + "/api/v1/"
}

func (f *fakeAPI) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(f.baseURL()), WithLogOutput(io.Discard)}, opts...)
	c, err := New(testEmail, testPassword, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// expireTokens makes every token issued so far unusable.
func (f *fakeAPI) expireTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = make(map[string]bool)
}

func (f *fakeAPI) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeAPI) unauthorizedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unauthorized
}

func (f *fakeAPI) lastCreated() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// seed stores a campaign resource and returns its id.
func (f *fakeAPI) seed(fields map[string]interface{}) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	res := map[string]interface{}{"id": id}
	for k, v := range fields {
		res[k] = v
	}
	f.campaigns[id] = res
	f.order = append(f.order, id)
	return id
}

// update merges fields into a stored campaign, as the backend would while
// dispatching it.
func (f *fakeAPI) update(id string, fields map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range fields {
		f.campaigns[id][k] = v
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	if r.PostForm.Get("username") != testEmail || r.PostForm.Get("password") != testPassword {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "LOGIN_BAD_CREDENTIALS"})
		return
	}

	f.mu.Lock()
	f.logins++
	f.issued++
	token := "tok-" + strconv.Itoa(f.issued)
	f.valid[token] = true
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (f *fakeAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		f.mu.Lock()
		ok := f.valid[token] && !f.rejectAll
		if !ok {
			f.unauthorized++
		}
		f.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeAPI) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          "7d3c2a4e-0b1f-4c55-9f0e-5c1b2a9d8e11",
		"email":       testEmail,
		"is_active":   true,
		"is_verified": false,
	})
}

func (f *fakeAPI) subscription(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	failWith := f.failWith
	credits := f.credits
	f.mu.Unlock()

	if failWith != 0 {
		w.WriteHeader(failWith)
		w.Write([]byte("upstream unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         "sub-1",
		"nbr_sms":    credits,
		"created_at": "2026-01-15T08:30:00",
	})
}

func (f *fakeAPI) listCampaigns(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	f.mu.Lock()
	defer f.mu.Unlock()

	page := []map[string]interface{}{}
	for i := skip; i < len(f.order); i++ {
		if !f.ignoreLimit && len(page) >= limit {
			break
		}
		page = append(page, f.campaigns[f.order[i]])
	}
	writeJSON(w, http.StatusOK, page)
}

func (f *fakeAPI) getCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f.mu.Lock()
	res, ok := f.campaigns[id]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Campaign not found"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (f *fakeAPI) createCampaign(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	recipients, _ := body["recipient_list"].([]interface{})
	for i, p := range recipients {
		if p == "invalid" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"detail": []map[string]interface{}{
					{"loc": []interface{}{"body", "recipient_list", i}, "msg": "value is not a valid phone number"},
				},
			})
			return
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, body)

	id := uuid.NewString()
	res := map[string]interface{}{"id": id}
	for k, v := range body {
		res[k] = v
	}
	if _, ok := res["title"]; !ok {
		res["title"] = fmt.Sprintf("Campaign %d", len(f.order)+1)
	}
	res["message_count"] = len(recipients)
	res["sms_count"] = len(recipients)
	res["delivery_percentage"] = 0.0

	status := http.StatusOK
	if f.credits < len(recipients) {
		status = http.StatusCreated
		res["status"] = "PENDING"
	} else {
		f.credits -= len(recipients)
		res["status"] = "PROCESSING"
		if _, ok := body["defer_until"]; ok {
			res["status"] = "SCHEDULED"
		}
	}

	f.campaigns[id] = res
	f.order = append(f.order, id)
	writeJSON(w, status, res)
}

func (f *fakeAPI) retryCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	res, ok := f.campaigns[body.ID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Campaign not found"})
		return
	}
	count, _ := res["message_count"].(int)
	if f.credits < count {
		writeJSON(w, http.StatusCreated, map[string]string{"detail": "insufficient credits"})
		return
	}
	f.credits -= count
	res["status"] = "PROCESSING"
	writeJSON(w, http.StatusOK, map[string]string{"detail": "ok"})
}
