package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/core/bootstrap"
	"github.com/trezcool/masomodb/core/entity"
)

type bootstrapAPI struct {
	svc Bootstrapper
}

func registerBootstrapAPI(v1 *echo.Group, jwt echo.MiddlewareFunc, svc Bootstrapper) {
	api := bootstrapAPI{svc: svc}

	g := v1.Group("/bootstrap", jwt)
	g.GET("/status", api.status, adminMiddleware())
	g.POST("/run", api.run, adminMiddleware(entity.RoleAdminOwner, entity.RoleAdminPrincipal))
	g.POST("/reset", api.reset, adminMiddleware(entity.RoleAdminOwner))
}

type statusResponse struct {
	bootstrap.Status
	Phase   string `json:"phase"`
	Running bool   `json:"running"`
}

func (api bootstrapAPI) status(ctx echo.Context) error {
	st, err := api.svc.GetStatus(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting bootstrap status")
	}
	return ctx.JSON(http.StatusOK, statusResponse{
		Status:  st,
		Phase:   api.svc.Phase().String(),
		Running: api.svc.Running(),
	})
}

// run starts a bootstrap run. With ?async=true it returns at once;
// otherwise it waits for the report, answering 503 when a required step failed.
func (api bootstrapAPI) run(ctx echo.Context) error {
	var params runParams
	if err := params.Bind(ctx); err != nil {
		return err
	}

	if params.Async {
		if err := api.svc.Start(ctx.Request().Context(), nil); err != nil {
			return errors.Wrap(err, "starting bootstrap")
		}
		return ctx.JSON(http.StatusAccepted, echo.Map{"phase": api.svc.Phase().String(), "running": true})
	}

	report, err := api.svc.Run(ctx.Request().Context(), nil)
	if err != nil {
		return errors.Wrap(err, "running bootstrap")
	}
	code := http.StatusOK
	if !report.Success {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, report)
}

func (api bootstrapAPI) reset(ctx echo.Context) error {
	var req resetRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return err
		}
	}
	res, err := api.svc.ResetState(ctx.Request().Context(), req.IncludeUserData)
	if err != nil {
		return errors.Wrap(err, "resetting bootstrap state")
	}
	return ctx.JSON(http.StatusOK, res)
}
