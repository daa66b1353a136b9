package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newGetRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	return req
}

func TestStandardClient_Wraps(t *testing.T) {
	customClient := &http.Client{}
	client := NewStandardClient(customClient)

	if client.Client != customClient {
		t.Error("expected custom client to be wrapped")
	}
}

func TestStandardClient_DefaultsToDefaultClient(t *testing.T) {
	client := NewStandardClient(nil)
	if client.Client != http.DefaultClient {
		t.Error("expected nil to default to http.DefaultClient")
	}
}

func TestStandardClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "pong")
	}))
	defer srv.Close()

	client := NewStandardClient(srv.Client())
	resp, err := client.Do(newGetRequest(t, srv.URL+"/health"))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "pong" {
		t.Errorf("got %d %q, want 200 pong", resp.StatusCode, body)
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "first")
	mock.AddResponse(http.StatusInternalServerError, "second")

	resp, err := mock.Do(newGetRequest(t, "http://inference/detect"))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "first" {
		t.Errorf("first response = %d %q", resp.StatusCode, body)
	}

	resp, err = mock.Do(newGetRequest(t, "http://inference/detect"))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusInternalServerError || string(body) != "second" {
		t.Errorf("second response = %d %q", resp.StatusCode, body)
	}
}

func TestMockHTTPClient_DefaultResponse(t *testing.T) {
	mock := NewMockHTTPClient()

	resp, err := mock.Do(newGetRequest(t, "http://inference/health"))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "" {
		t.Errorf("default response = %d %q, want 200 with empty body", resp.StatusCode, body)
	}
}

func TestMockHTTPClient_AddErrorResponse(t *testing.T) {
	mock := NewMockHTTPClient()
	wantErr := errors.New("connection refused")
	mock.AddErrorResponse(wantErr)

	if _, err := mock.Do(newGetRequest(t, "http://inference/detect")); err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestMockHTTPClient_DefaultError(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DefaultError = errors.New("service down")

	if _, err := mock.Do(newGetRequest(t, "http://inference/health")); err == nil {
		t.Error("expected default error")
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTeapot,
			Body:       io.NopCloser(strings.NewReader(req.URL.Path)),
			Header:     make(http.Header),
		}, nil
	}

	resp, err := mock.Do(newGetRequest(t, "http://inference/custom"))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusTeapot || string(body) != "/custom" {
		t.Errorf("DoFunc response = %d %q", resp.StatusCode, body)
	}
}

func TestMockHTTPClient_RecordsRequests(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.Do(newGetRequest(t, "http://inference/a"))
	mock.Do(newGetRequest(t, "http://inference/b"))

	if mock.RequestCount() != 2 {
		t.Fatalf("RequestCount() = %d, want 2", mock.RequestCount())
	}
	if got := mock.GetRequest(0).URL.Path; got != "/a" {
		t.Errorf("request 0 path = %q, want /a", got)
	}
	if got := mock.GetRequest(1).URL.Path; got != "/b" {
		t.Errorf("request 1 path = %q, want /b", got)
	}
	if mock.GetRequest(2) != nil {
		t.Error("out-of-range GetRequest should return nil")
	}
	if mock.GetRequest(-1) != nil {
		t.Error("negative GetRequest should return nil")
	}
}

func TestMockHTTPClient_Reset(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "queued")
	mock.DefaultError = errors.New("boom")
	mock.Do(newGetRequest(t, "http://inference/a"))

	mock.Reset()

	if mock.RequestCount() != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", mock.RequestCount())
	}
	resp, err := mock.Do(newGetRequest(t, "http://inference/b"))
	if err != nil {
		t.Fatalf("Do after Reset failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status after Reset = %d, want 200 default", resp.StatusCode)
	}
}
