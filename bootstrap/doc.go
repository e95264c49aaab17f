// Package bootstrap orchestrates process lifecycle for services built on
// this module: component startup in registration order, readiness
// aggregation, and signal-driven graceful shutdown with a bounded budget.
//
// # Quick Start
//
//	app := bootstrap.New("checkout")
//	app.RegisterComponent(naming.NewComponent(client))
//	app.OnStop(func(ctx context.Context) error {
//	    return drainInFlightRequests(ctx)
//	})
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
