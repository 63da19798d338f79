// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/powledger/app/services/ledger/handlers/v1/public"
	"github.com/ardanlabs/powledger/foundation/blockchain/ledger"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// legacy marks the routes existing miners call without a version prefix.
const legacy = ""

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log    *zap.SugaredLogger
	Ledger *ledger.Ledger
	NS     *nameservice.NameService
	Evts   *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:    cfg.Log,
		Ledger: cfg.Ledger,
		NS:     cfg.NS,
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodPost, legacy, "/mine", pbl.Mine)
	app.Handle(http.MethodGet, legacy, "/chain", pbl.Chain)
	app.Handle(http.MethodGet, legacy, "/last_block", pbl.LastBlock)
	app.Handle(http.MethodPost, legacy, "/transactions/new", pbl.AddTransaction)

	app.Handle(http.MethodGet, version, "/miners", pbl.Miners)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}
