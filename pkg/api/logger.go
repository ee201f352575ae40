package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo"
	log "github.com/sirupsen/logrus"
)

// Logger returns a middleware that logs HTTP requests.
func Logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			var err error
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}
			reqSize, convErr := strconv.ParseInt(req.Header.Get(echo.HeaderContentLength), 10, 64)
			if convErr != nil {
				reqSize = 0
			}
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			}

			log.WithFields(log.Fields{
				"id":            id,
				"remote_ip":     c.RealIP(),
				"host":          req.Host,
				"method":        req.Method,
				"uri":           req.RequestURI,
				"protocol":      req.Proto,
				"user_agent":    req.UserAgent(),
				"status":        res.Status,
				"status_text":   http.StatusText(res.Status),
				"referer":       req.Referer(),
				"error":         errMsg,
				"bytes_in":      reqSize,
				"bytes_out":     res.Size,
				"latency":       stop.Sub(start).Nanoseconds(),
				"latency_human": stop.Sub(start).String(),
			}).Infof("%s %s %s %d %s", req.Method, req.RequestURI, req.Proto,
				res.Status, strconv.FormatInt(res.Size, 10))

			// The error was handled above
			return nil
		}
	}
}
