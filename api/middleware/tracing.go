package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/nolashq/nolas/internal/tracing"
)

// Tracing opens a server span per request, joining an upstream trace when
// the inbound headers carry one.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		operation := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), operation, c.Request.Header)
		defer span.Finish()

		tracing.TagComponentRest(span)
		if app := GetApp(c); app != nil {
			tracing.TagApp(span, app.ID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetTag("http.status_code", c.Writer.Status())
		if c.Writer.Status() >= 500 {
			opentracing.Tag{Key: "error", Value: true}.Set(span)
		}
	}
}
