package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/user"
)

type certificateApi struct {
	svc     certificate.Service
	userSvc user.Service
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := certificateApi{
		svc:     deps.CertificateSvc,
		userSvc: deps.UserSvc,
	}

	cg := g.Group("/certificates")
	cg.GET("", api.mine, jwt)
	cg.GET("/:number", api.verify)

	g.GET("/admin/certificates", api.query, jwt, adminMiddleware(api.userSvc))
}

func (api *certificateApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	certs, err := api.svc.ForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	return ctx.JSON(http.StatusOK, certs)
}

// verify is public: anyone holding a certificate number may check it.
func (api *certificateApi) verify(ctx echo.Context) error {
	v, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("number"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *certificateApi) query(ctx echo.Context) error {
	var filter certificate.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []certificate.Details{})
	}
	certs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	return ctx.JSON(http.StatusOK, certs)
}
