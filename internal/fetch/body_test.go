package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchRejectsOversizedBody(t *testing.T) {
	old := maxBodySize
	maxBodySize = 64
	t.Cleanup(func() { maxBodySize = old })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 65))
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), Request{URL: srv.URL})
	if !IsKind(err, KindDecode) {
		t.Fatalf("err = %v, want decode kind", err)
	}

	// a body exactly at the cap still comes back whole
	srvOK := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("y"), 64))
	}))
	defer srvOK.Close()

	doc, err := Fetch(context.Background(), srvOK.Client(), Request{URL: srvOK.URL})
	if err != nil {
		t.Fatalf("fetch at cap: %v", err)
	}
	if len(doc.Body) != 64 {
		t.Errorf("body = %d bytes, want 64", len(doc.Body))
	}
}
