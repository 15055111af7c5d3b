package middleware

import (
	"context"
	"net/http"

	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/Dhoini/comics-billing/pkg/res"

	"github.com/gin-gonic/gin"
)

// SubscriptionChecker отвечает, есть ли у пользователя оплаченный доступ.
type SubscriptionChecker interface {
	IsUserSubscribed(ctx context.Context, userID string) (bool, error)
}

// RequireSubscription пропускает только подписчиков. Авторы и администраторы
// проходят без проверки. Ставится после RequireAuth.
func RequireSubscription(checker SubscriptionChecker, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch Role(c) {
		case RoleCreator, RoleAdmin:
			c.Next()
			return
		}

		userID := UserID(c)
		subscribed, err := checker.IsUserSubscribed(c.Request.Context(), userID)
		if err != nil {
			log.Errorw("Subscription check failed", "userID", userID, "error", err)
			res.JsonError(c.Writer, "Subscription check failed", http.StatusInternalServerError)
			c.Abort()
			return
		}
		if !subscribed {
			res.JsonError(c.Writer, "Active subscription required", http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
