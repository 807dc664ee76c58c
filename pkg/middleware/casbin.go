package middleware

import (
	"net/http"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/labstack/echo/v4"

	"NoticeBoard/internal/user"
)

var (
	enforcer     *casbin.Enforcer
	enforcerOnce sync.Once
)

// casbinModel is the RBAC model. Objects are echo route templates
// (e.g. /api/notices/:id/archive) matched exactly, so a policy row gates
// one route and the role hierarchy (admin > faculty > student) handles the
// rest.
const casbinModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act`

// InitCasbinEnforcer initializes the Casbin enforcer singleton with the
// model defined in code and the policy from rbac_policy.csv.
func InitCasbinEnforcer() (*casbin.Enforcer, error) {
	var err error
	enforcerOnce.Do(func() {
		m, errM := model.NewModelFromString(casbinModel)
		if errM != nil {
			err = errM
			return
		}
		adapter := fileadapter.NewAdapter("rbac_policy.csv")
		enforcer, err = casbin.NewEnforcer(m, adapter)
	})
	return enforcer, err
}

// CasbinMiddleware enforces route-level RBAC for each request. Ownership
// rules (author-or-admin on update/delete) are enforced in the notice
// service on top of this.
func CasbinMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get("user").(*user.JWTClaims)
		if !ok || claims == nil {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Missing user claims"})
		}
		enf, err := InitCasbinEnforcer()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
		}
		allowed, err := enf.Enforce(claims.Role, c.Path(), c.Request().Method)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
		}
		if !allowed {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Insufficient permissions"})
		}
		return next(c)
	}
}
