package middleware_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/frahmantamala/smm-storefront/internal/transport/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTPMetrics", func() {
	It("should label latency with the route pattern", func() {
		latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_latency_seconds",
		}, []string{"method", "route", "status"})

		r := chi.NewRouter()
		r.Use(middleware.HTTPMetrics(latency))
		r.Get("/payments/{order_id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		for _, id := range []string{"a", "b"} {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payments/"+id, nil))
		}

		Expect(testutil.CollectAndCount(latency)).To(Equal(1))
		Expect(testutil.CollectAndCount(latency, "test_latency_seconds")).To(Equal(1))
	})
})
