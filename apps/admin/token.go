package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/masomodb/apps/api/echo"
	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/user"
)

// issueToken authenticates an admin account against the remote store and signs an API token for it.
func (cli *commandLine) issueToken(ctx context.Context, uname, pwd string, ttl time.Duration) (string, error) {
	rc := cli.conf.Remote
	if err := cli.users.Initialize(ctx, rc.URL, rc.Key, rc.ConnectOptions()); err != nil {
		return "", err
	}

	uname = core.CleanString(uname, true /* lower */)
	var row core.Row
	for _, field := range []string{"username", "email"} {
		rows, err := cli.users.Query(ctx, entity.KindUser, core.Query{
			Filters: []core.Filter{{Field: field, Value: uname}},
			Limit:   1,
		})
		if err != nil {
			return "", errors.Wrap(err, "looking up account")
		}
		if len(rows) > 0 {
			row = rows[0]
			break
		}
	}
	if row == nil {
		return "", user.ErrInvalidCredentials
	}

	usr, err := user.FromRow(row)
	if err != nil {
		return "", err
	}
	if err := user.Authenticate(usr, pwd); err != nil {
		return "", err
	}
	if !user.IsAdmin(usr.Roles) {
		return "", errors.Errorf("%s is not an admin", usr.Username)
	}

	if ttl <= 0 {
		ttl = cli.conf.Server.JWTExpirationDelta
	}
	claims := echoapi.NewClaims(cli.conf.AppName, usr.Username, usr.Roles, ttl, cli.now())
	return echoapi.GenerateToken(claims, cli.conf.Server.SecretKey)
}
