package shared

import (
	"github.com/talclub-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetContextUint 从上下文读取 uint 值并统一处理错误响应。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, "未登录")
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			response.BadRequest(c, "身份标识无效")
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			response.BadRequest(c, "身份标识无效")
			return 0, false
		}
		return uint(v), true
	default:
		response.Error(c, response.CodeInternal, "身份标识类型错误")
		return 0, false
	}
}
