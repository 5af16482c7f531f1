package public

import (
	handlershared "github.com/talclub-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getMemberID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "member_id")
}
