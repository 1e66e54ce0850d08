package handler

import (
	"net/http"
	"strings"

	"github.com/blues/donation/internal/logic"
	"github.com/gin-gonic/gin"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	actorKey = "actor"
)

// ActorMiddleware 从认证层注入的请求头读取调用方身份
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(actorKey, logic.Actor{
			ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
			Role: logic.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))),
		})
		c.Next()
	}
}

// CurrentActor 当前调用方，未携带身份时返回零值
func CurrentActor(c *gin.Context) logic.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(logic.Actor); ok {
			return actor
		}
	}
	return logic.Actor{}
}

// authorize 权限校验，失败时已写入响应
func authorize(c *gin.Context, action logic.Action, resource logic.Resource) bool {
	actor := CurrentActor(c)
	if actor.ID == "" {
		ErrorResponse(c, http.StatusUnauthorized, "缺少调用方身份")
		return false
	}
	if !logic.CanPerform(actor, action, resource) {
		ErrorResponse(c, http.StatusForbidden, logic.ErrPermissionDenied.Error())
		return false
	}
	return true
}
