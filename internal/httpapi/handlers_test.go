package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"faqbot/internal/dialog"
	"faqbot/internal/domain"
	"faqbot/internal/embedding/tfidf"
	"faqbot/internal/index"
	"faqbot/internal/matcher"
	"faqbot/internal/normalize"
	"faqbot/internal/rules"
	"faqbot/internal/service"
	"faqbot/internal/store/jsonfile"
)

func newServer(t *testing.T) (*httptest.Server, *service.FAQService) {
	t.Helper()
	n := normalize.New(normalize.DefaultOptions(), nil, nil)
	idx := index.New(tfidf.NewVectorizer(n, tfidf.DefaultConfig()), n, index.Options{})
	ctrl := dialog.New(n, rules.Default(), matcher.New(idx, matcher.DefaultConfig()), dialog.DefaultConfig())
	store := jsonfile.New(filepath.Join(t.TempDir(), "faqs.json"), nil)
	svc := service.NewFAQService(idx, ctrl, service.Options{Store: store})
	for _, in := range []service.UpsertInput{
		{Question: "What are your opening hours?", Answer: "We are open 9am to 5pm."},
		{Question: "How do I reset my password?", Answer: "Use the forgot password link."},
	} {
		if _, err := svc.Upsert(in); err != nil {
			t.Fatal(err)
		}
	}
	srv := httptest.NewServer(NewRouter(NewHandler(svc, ctrl, time.Second, nil)))
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAsk_MintsSessionAndAnswers(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/ask", askRequest{Text: "what are your opening hours"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[askResponse](t, resp)
	if got.SessionID == "" || resp.Header.Get(SessionHeader) != got.SessionID {
		t.Errorf("session id = %q, header = %q", got.SessionID, resp.Header.Get(SessionHeader))
	}
	if got.Method != domain.MethodRetrieval || got.MatchedID == nil || *got.MatchedID != 1 {
		t.Errorf("envelope = %+v", got.Envelope)
	}
	if got.Alternatives == nil {
		t.Error("alternatives should be an empty list, not null")
	}

	again := decode[askResponse](t, do(t, http.MethodPost, srv.URL+"/api/ask", askRequest{SessionID: got.SessionID, Text: "hello"}))
	if again.SessionID != got.SessionID || again.Method != domain.MethodRule {
		t.Errorf("second turn = %+v", again)
	}

	sess := decode[dialog.Session](t, do(t, http.MethodGet, srv.URL+"/api/sessions/"+got.SessionID, nil))
	if sess.Turns != 2 {
		t.Errorf("turns = %d, want 2", sess.Turns)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/sessions/"+got.SessionID, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("close status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/sessions/"+got.SessionID, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("closed session status = %d", resp.StatusCode)
	}
}

func TestAsk_BadBody(t *testing.T) {
	srv, _ := newServer(t)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/ask", bytes.NewBufferString("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestFAQCrud(t *testing.T) {
	srv, svc := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/faqs", faqRequest{Question: "Do you ship abroad?", Answer: "Yes.", Tags: []string{"shipping"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[domain.FAQ](t, resp)
	if created.ID != 3 || created.Category != domain.DefaultCategory {
		t.Errorf("created = %+v", created)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/faqs/3", faqRequest{Question: "Do you ship internationally?", Answer: "Yes, worldwide."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace status = %d", resp.StatusCode)
	}
	if f := decode[domain.FAQ](t, resp); f.Answer != "Yes, worldwide." {
		t.Errorf("replaced = %+v", f)
	}

	if list := decode[[]domain.FAQ](t, do(t, http.MethodGet, srv.URL+"/api/faqs", nil)); len(list) != 3 {
		t.Errorf("list len = %d", len(list))
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/faqs/3", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if _, err := svc.Get(3); err == nil {
		t.Error("record still present")
	}

	tests := []struct {
		method string
		path   string
		body   any
		want   int
	}{
		{http.MethodGet, "/api/faqs/3", nil, http.StatusNotFound},
		{http.MethodDelete, "/api/faqs/3", nil, http.StatusNotFound},
		{http.MethodGet, "/api/faqs/abc", nil, http.StatusBadRequest},
		{http.MethodPut, "/api/faqs/99", faqRequest{Question: "q", Answer: "a"}, http.StatusNotFound},
		{http.MethodPost, "/api/faqs", faqRequest{Question: " ", Answer: "a"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if resp := do(t, tt.method, srv.URL+tt.path, tt.body); resp.StatusCode != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestRefitSaveStats(t *testing.T) {
	srv, _ := newServer(t)
	got := decode[map[string]int](t, do(t, http.MethodPost, srv.URL+"/api/refit", nil))
	if got["vocab_size"] == 0 {
		t.Errorf("refit = %v", got)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/save", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("save status = %d", resp.StatusCode)
	}
	stats := decode[service.Stats](t, do(t, http.MethodGet, srv.URL+"/api/stats", nil))
	if stats.Index.Live != 2 || stats.Index.VocabSize != got["vocab_size"] {
		t.Errorf("stats = %+v", stats)
	}
}

type slowService struct{ Service }

func (slowService) Ask(ctx context.Context, _, _ string, _ int) (domain.Envelope, error) {
	<-ctx.Done()
	return domain.Envelope{}, domain.ErrTimeout
}

func TestAsk_TimeoutMapsTo504(t *testing.T) {
	h := NewHandler(slowService{}, nil, 10*time.Millisecond, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{"text":"hi"}`))
	NewRouter(h).ServeHTTP(rec, req)
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}
