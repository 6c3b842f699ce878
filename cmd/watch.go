package main

import (
	"context"
	"errors"
	"sync"

	"github.com/desertthunder/discx/internal/inbox"
	"github.com/desertthunder/discx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Watch processes jobs on an interval and whenever one is queued, until interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}

	trigger := d.trigger
	if cmd.IsSet("interval") {
		trigger = tasks.NewIntervalTrigger(cmd.Duration("interval"), d.runner.Resume, r.logger)
		d.trigger = trigger
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	defer d.runner.Subscribe(updates)()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- trigger.Run(ctx)
	}()

	if dir := cmd.String("inbox"); dir != "" {
		watcher, err := inbox.NewWatcher(inbox.Options{Dir: dir, Enqueuer: d.runner, Logger: r.logger})
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- watcher.Run(ctx)
		}()
		r.writePlain("Watching %s for cover photos\n", dir)
	}

	trigger.Request()
	r.writePlain("%s\n", styles.help.Render("Processing in the background, press Ctrl+C to stop"))

	var runErr error
loop:
	for {
		select {
		case u := <-updates:
			r.printProgress(u)
		case err := <-errs:
			if err != nil && !errors.Is(err, context.Canceled) {
				runErr = err
			}
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	cancel()
	wg.Wait()
	return runErr
}
