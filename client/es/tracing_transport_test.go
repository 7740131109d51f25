package es

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/mocktracer"
)

type failingTransport struct{}

func (failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestTracingTransport(t *testing.T) {
	RegisterTestingT(t)

	tracer := mocktracer.New()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	conflict := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer conflict.Close()

	t.Run("should pass through without parent span", func(t *testing.T) {
		tracer.Reset()
		client := &http.Client{Transport: &TracingTransport{Transport: http.DefaultTransport}}
		res, err := client.Get(ok.URL)
		Expect(err).To(BeNil())
		Expect(res.StatusCode).To(Equal(http.StatusOK))
		Expect(tracer.FinishedSpans()).To(BeEmpty())
	})

	cases := []struct {
		name      string
		url       string
		transport http.RoundTripper
		tags      map[string]interface{}
	}{
		{"success", ok.URL, http.DefaultTransport, map[string]interface{}{
			"span.kind": ext.SpanKindEnum("client"), "http.url": ok.URL, "http.method": "PUT",
			"http.status_code": uint16(200), "error": false,
		}},
		{"error status", conflict.URL, http.DefaultTransport, map[string]interface{}{
			"span.kind": ext.SpanKindEnum("client"), "http.url": conflict.URL, "http.method": "PUT",
			"http.status_code": uint16(409), "error": true,
		}},
		{"no response", "http://127.0.0.1:9200/approval-instances", failingTransport{}, map[string]interface{}{
			"span.kind": ext.SpanKindEnum("client"), "http.url": "http://127.0.0.1:9200/approval-instances", "http.method": "PUT",
			"error": true, "error.detail": "connection refused",
		}},
	}
	for _, c := range cases {
		t.Run("should trace child span on "+c.name, func(t *testing.T) {
			tracer.Reset()
			parent := tracer.StartSpan("index")
			req, err := http.NewRequestWithContext(opentracing.ContextWithSpan(context.Background(), parent), http.MethodPut, c.url, nil)
			Expect(err).To(BeNil())

			_, _ = (&TracingTransport{Transport: c.transport}).RoundTrip(req)
			parent.Finish()

			spans := tracer.FinishedSpans()
			Expect(len(spans)).To(Equal(2))
			Expect(spans[0].ParentID).To(Equal(spans[1].SpanContext.SpanID))
			Expect(spans[0].Tags()).To(Equal(c.tags))
		})
	}
}
