package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/notify-router/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	Context("server creation", func() {
		DescribeTable("accepts valid addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop)
				Expect(err).NotTo(HaveOccurred())
				Expect(srv.Addr()).To(Equal(addr))
			},
			Entry("hostname", "localhost:9999"),
			Entry("ip address", "127.0.0.1:9999"),
			Entry("port only", ":9999"),
		)

		DescribeTable("rejects invalid addresses",
			func(addr string) {
				srv, err := httpserver.New(addr, noop)
				Expect(err).To(HaveOccurred())
				Expect(srv).To(BeNil())
			},
			Entry("empty", ""),
			Entry("too many colons", "invalid:host:port"),
			Entry("missing port", "localhost:"),
			Entry("non-numeric port", "localhost:http"),
			Entry("bad host", "bad_host!:8080"),
		)
	})

	Context("server lifecycle", func() {
		var testServer *httpserver.Server

		AfterEach(func() {
			if testServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = testServer.Shutdown(ctx)
			}
		})

		It("starts and handles requests", func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			var err error
			testServer, err = httpserver.New("127.0.0.1:19987", handler)
			Expect(err).NotTo(HaveOccurred())

			go func() { _ = testServer.Start() }()

			var resp *http.Response
			Eventually(func() error {
				resp, err = http.Get("http://127.0.0.1:19987")
				return err
			}).Should(Succeed())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("ok"))
		})

		It("shuts down gracefully", func() {
			var err error
			testServer, err = httpserver.New("127.0.0.1:19986", noop, httpserver.WithShutdownTimeout(time.Second))
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() { done <- testServer.Start() }()
			Eventually(func() error {
				resp, err := http.Get("http://127.0.0.1:19986")
				if err == nil {
					resp.Body.Close()
				}
				return err
			}).Should(Succeed())

			Expect(testServer.Shutdown(context.Background())).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
