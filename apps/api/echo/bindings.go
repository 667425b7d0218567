package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

var asyncParam = "async"

// runParams are the query parameters of the run endpoint.
type runParams struct {
	Async bool
}

func (p *runParams) Bind(ctx echo.Context) error {
	val := ctx.QueryParam(asyncParam)
	if val == "" {
		return nil
	}
	async, err := strconv.ParseBool(val)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "async must be a boolean")
	}
	p.Async = async
	return nil
}

type resetRequest struct {
	IncludeUserData bool `json:"include_user_data"`
}
