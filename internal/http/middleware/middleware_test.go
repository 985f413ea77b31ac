package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/internal/http/middleware"
)

var _ = Describe("middleware", func() {
	var router *gin.Engine

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		router.Use(middleware.Recovery(), middleware.RequestID(), middleware.Logger())
	})

	It("recovers a panicking handler with a 500", func() {
		router.GET("/boom", func(*gin.Context) { panic("handler exploded") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		var resp map[string]string
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["error"]).To(Equal("internal server error"))
	})

	It("assigns a request id and exposes it to handlers", func() {
		var seen *string
		router.GET("/ok", func(c *gin.Context) {
			seen = logger.GetLogFields(c.Request.Context()).RequestID
			c.Status(http.StatusNoContent)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

		id := w.Header().Get(middleware.RequestIDHeader)
		Expect(id).To(HaveLen(36))
		Expect(seen).NotTo(BeNil())
		Expect(*seen).To(Equal(id))
	})

	It("keeps the caller's request id", func() {
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Header().Get(middleware.RequestIDHeader)).To(Equal("req-123"))
	})
})
