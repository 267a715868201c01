package pkgrouter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecovererRendersJSONError(t *testing.T) {
	h := middlewareRecoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("disk on fire")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/processcsvfile", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Internal server error" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRecovererRethrowsAbort(t *testing.T) {
	h := middlewareRecoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rvr := recover(); rvr != http.ErrAbortHandler { //nolint:errorlint // direct compare
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rvr)
		}
	}()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestInternalFrames(t *testing.T) {
	stack := []byte("goroutine 1 [running]:\n" +
		"main.main()\n" +
		"\t/src/godataset/internal/dataset/usecase/usecase.go:120 +0x1d\n" +
		"\t/usr/local/go/src/net/http/server.go:2166 +0x29\n" +
		"\t/src/godataset/internal/pkg/pkgrouter/router.go:150\n")

	got := internalFrames(stack)
	want := []string{
		"internal/dataset/usecase/usecase.go:120",
		"internal/pkg/pkgrouter/router.go:150",
	}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
