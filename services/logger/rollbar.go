package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/mmust/marktrack/core"
)

// RollbarLogger reports to Rollbar (when enabled) and always prints to `std`.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare splits the identity (lecturer or student) from the other args.
// expected args: error, map[string]interface{}, core.Identity
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, identity *core.Identity) {
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		if id, ok := arg.(core.Identity); ok {
			if identity == nil { // only the first one counts
				identity = &id
			}
			continue
		}
		rbArgs = append(rbArgs, arg)
	}
	return rbArgs, identity
}

func (l RollbarLogger) report(level string, msg string, args []interface{}) {
	rbArgs, identity := l.prepare(msg, args)
	if identity != nil {
		rollbar.SetPerson(identity.ID, identity.Username, identity.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, rbArgs...)
	l.print(msg, rbArgs[1:], identity)
}

func (l RollbarLogger) print(msg string, args []interface{}, identity *core.Identity) {
	if identity != nil {
		l.std.Printf("%s [%s]\n", msg, identity.ID)
	} else {
		l.std.Println(msg)
	}
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
