// Package emailsvc provides the email services: a console writer for development and SendGrid for production.
package emailsvc

import (
	"os"

	"github.com/trezcool/masomodb/core"
)

// New picks the console service in debug mode or when no SendGrid key is set.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return NewConsoleService(conf, os.Stdout, logger)
	}
	return NewSendgridService(conf, logger)
}
