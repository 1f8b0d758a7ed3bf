package pkg

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type TestHttpResponseWriter struct {
	HeaderMap  http.Header
	Body       []byte
	StatusCode int
}

func (w *TestHttpResponseWriter) Header() http.Header {
	return w.HeaderMap
}

func (w *TestHttpResponseWriter) Write(bytes []byte) (int, error) {
	w.Body = bytes
	return len(bytes), nil
}

func (w *TestHttpResponseWriter) WriteHeader(statusCode int) {
	w.StatusCode = statusCode
}

func TestWriteResponseBytes(t *testing.T) {
	w := &TestHttpResponseWriter{
		HeaderMap: make(http.Header),
	}

	testJson := `{"key":"val"}`
	WriteResponseBytes(w, ContentType.JSON, []byte(testJson), http.StatusCreated)

	assert.Equal(t, http.StatusCreated, w.StatusCode)
	assert.Equal(t, ContentType.JSON, w.HeaderMap.Get("Content-Type"))
	assert.Equal(t, testJson, string(w.Body))
}

func TestWriteResponseBytes_NoContentType(t *testing.T) {
	w := &TestHttpResponseWriter{
		HeaderMap: make(http.Header),
	}

	WriteResponseBytes(w, "", []byte("deleted:3"), http.StatusOK)

	assert.Equal(t, http.StatusOK, w.StatusCode)
	assert.Empty(t, w.HeaderMap.Get("Content-Type"))
	assert.Equal(t, "deleted:3", string(w.Body))
}

func TestWriteTextResponseOK(t *testing.T) {
	w := &TestHttpResponseWriter{
		HeaderMap: make(http.Header),
	}

	testText := `test text`
	WriteTextResponseOK(w, testText)

	assert.Equal(t, http.StatusOK, w.StatusCode)
	assert.Equal(t, ContentType.Text, w.HeaderMap.Get("Content-Type"))
	assert.Equal(t, testText, string(w.Body))
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]int{"total": 2})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ContentType.JSON, rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"total": 2}`, rr.Body.String())

	rr = httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, make(chan int))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
