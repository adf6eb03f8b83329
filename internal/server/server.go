package server

import (
	"fmt"
	"time"

	"github.com/dchest/uniuri"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// requestIDHeader carries the id under which a request is logged
const requestIDHeader = "X-Request-Id"

// Options configure the reference calculator service.
type Options struct {
	Latency time.Duration // Artificial delay added to every calc request

	Log *logrus.Logger // Receives a debug line per request. Defaults to the standard logger
}

// NewRouter returns the handler of the reference calculator service, serving
//
//	GET  /healthcheck
//	POST /calc
func NewRouter(opts Options) *gin.Engine {
	h := &httpServer{latency: opts.Latency}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery(), logRequests(opts.Log))

	router.GET("/healthcheck", h.getHealthcheck)
	router.POST("/calc", h.postCalc)

	return router
}

// ListenAndServe serves the reference calculator service on all interfaces on the passed port. It blocks until the server fails.
func ListenAndServe(port int, opts Options) error {
	return NewRouter(opts).Run(fmt.Sprintf(":%d", port))
}

// logRequests tags every request with an id, returned in the X-Request-Id header, and logs it once it was handled
func logRequests(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uniuri.New()
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"prefix":     "reference",
			"request-id": id,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
		}).Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}
