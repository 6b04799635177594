package backend

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/smnsjas/go-xapi/options"
)

// wsParams are the options a WebSocket connection requires.
type wsParams struct {
	Host string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port int    `json:"port" validate:"gte=0,lte=65535"`
}

// sshParams are the options an SSH connection requires.
type sshParams struct {
	Host     string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	Username string `json:"username" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator. Field names in errors use
// the json tag so they match option names.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

func validateWebSocket(o options.Options) error {
	if err := validatorInstance().Struct(wsParams{Host: o.Host, Port: o.Port}); err != nil {
		return newOptionsError(o.Protocol, err)
	}
	return nil
}

func validateSSH(o options.Options) error {
	if err := validatorInstance().Struct(sshParams{Host: o.Host, Port: o.Port, Username: o.Username}); err != nil {
		return newOptionsError(o.Protocol, err)
	}
	return nil
}
