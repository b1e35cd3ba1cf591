package share

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v68/github"
)

func TestNewGistPublisher_RequiresToken(t *testing.T) {
	if _, err := NewGistPublisher(GistOpts{}); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestGistPublisher_Publish(t *testing.T) {
	var (
		auth string
		got  github.Gist
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/gists" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"g1","html_url":"https://gist.github.com/g1"}`))
	}))
	defer srv.Close()

	p, err := NewGistPublisher(GistOpts{Token: "tok", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGistPublisher: %v", err)
	}
	u, err := p.Publish(context.Background(), "training-log-t1.txt", "a\nb")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if u != "https://gist.github.com/g1" {
		t.Errorf("url = %q", u)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.GetPublic() {
		t.Error("gist should be secret by default")
	}
	f, ok := got.Files["training-log-t1.txt"]
	if !ok || f.GetContent() != "a\nb" {
		t.Errorf("files = %+v", got.Files)
	}
}

func TestGistPublisher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	p, err := NewGistPublisher(GistOpts{Token: "bad", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(context.Background(), "x.txt", "x"); err == nil {
		t.Error("expected error")
	}
}
