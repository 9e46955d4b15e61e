// Package response shapes every HTTP reply through the proxyutil
// envelope so clients see one stable {code, message, data} format.
package response

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// RateLimited reports a throttled request along with the standard
// Retry-After header so well-behaved clients can back off.
func RateLimited(c *gin.Context, code int, retryAfterSeconds int) {
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	proxyutil.FailJson(c, 429, AsCodeErr(uint32(code), "too many requests"))
}
