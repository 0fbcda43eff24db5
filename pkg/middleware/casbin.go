package middleware

import (
	"net/http"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"MemberPortal/internal/auth"
)

var (
	enforcer     *casbin.Enforcer
	enforcerOnce sync.Once
)

const rbacModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && r.act == p.act`

// InitCasbinEnforcer initializes the Casbin enforcer singleton: model defined
// in code, policies loaded from rbac_policy.csv at the working directory.
func InitCasbinEnforcer() (*casbin.Enforcer, error) {
	var err error
	enforcerOnce.Do(func() {
		m, errM := model.NewModelFromString(rbacModel)
		if errM != nil {
			err = errM
			return
		}
		adapter := fileadapter.NewAdapter("rbac_policy.csv")
		enforcer, err = casbin.NewEnforcer(m, adapter)
	})
	return enforcer, err
}

// CasbinMiddleware enforces route-level RBAC. It runs after JWTMiddleware and
// uses the registered route path as the object.
func CasbinMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get("user").(*auth.JWTClaims)
		if !ok || claims == nil {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Unauthorized: missing user claims"})
		}
		enf, err := InitCasbinEnforcer()
		if err != nil {
			log.Error().Err(err).Msg("casbin enforcer init failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
		}
		allowed, err := enf.Enforce(string(claims.Role), c.Path(), c.Request().Method)
		if err != nil {
			log.Error().Err(err).Msg("casbin enforce failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
		}
		if !allowed {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: insufficient permissions"})
		}
		return next(c)
	}
}
