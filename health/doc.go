// Package health runs named checks on a fixed interval and aggregates their
// results into an overall status.
//
// A Tracker does nothing until PrepareToLaunchPeriodicalChecks is called.
// When a gate channel is supplied the periodic loop starts only after the
// gate is closed; no check runs while the tracker is waiting. Every tick
// reads the current set of checks, runs them concurrently under a per-check
// timeout and publishes a Report whose status is the worst individual status.
//
//	tracker, _ := health.NewTracker(health.DefaultSettings(), health.WithLogger(log))
//	tracker.RegisterCheck("db", health.CheckFunc(func(ctx context.Context) (health.Result, error) {
//	    if err := db.PingContext(ctx); err != nil {
//	        return health.Failing(err.Error()), nil
//	    }
//	    return health.Healthy(), nil
//	}))
//	_ = tracker.PrepareToLaunchPeriodicalChecks(ctx, ready)
//	defer tracker.Stop(context.Background())
package health
