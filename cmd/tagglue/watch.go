package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-tagglue/analytics"
	"github.com/joeycumines/go-tagglue/config"
	"github.com/joeycumines/go-tagglue/dom/roddom"
	"github.com/joeycumines/go-tagglue/internal/logging"
	"github.com/joeycumines/go-tagglue/jsfunc"
	"github.com/joeycumines/go-tagglue/pipeline"
	"github.com/joeycumines/go-tagglue/schedule"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newWatchCommand(flags *rootFlags) *cobra.Command {
	var (
		url      string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   `watch`,
		Short: `Open the page, and run the monitors and trackers until interrupted`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.load()
			if err != nil {
				return err
			}
			if url != `` {
				c.Session.URL = url
			}
			if c.Session.URL == `` {
				return errors.New(`watch: no url, set session.url or --url`)
			}
			logger, err := newLogger(cmd.ErrOrStderr(), c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return watch(ctx, c, logger)
		},
	}
	cmd.Flags().StringVar(&url, `url`, ``, `overrides session.url`)
	cmd.Flags().DurationVar(&duration, `duration`, 0, `stop after this long (zero runs until interrupted)`)
	return cmd
}

func connectBrowser(c config.Browser) (*rod.Browser, error) {
	controlURL := c.ControlURL
	if controlURL == `` {
		l := launcher.New().Headless(c.HeadlessOrDefault())
		if c.Bin != `` {
			l = l.Bin(c.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf(`watch: launch browser: %w`, err)
		}
		controlURL = u
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf(`watch: connect browser: %w`, err)
	}
	return browser, nil
}

func watch(ctx context.Context, c *config.Config, logger *logging.Logger) error {
	sessionID := uuid.NewString()
	base := logger
	logger = logger.Clone().Str(`session`, sessionID).Logger()

	browser, err := connectBrowser(c.Browser)
	if err != nil {
		return err
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Warning().Err(err).Log(`failed to close browser`)
		}
	}()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: c.Session.URL})
	if err != nil {
		return fmt.Errorf(`watch: open %s: %w`, c.Session.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf(`watch: load %s: %w`, c.Session.URL, err)
	}

	loop, err := eventloop.New()
	if err != nil {
		return fmt.Errorf(`watch: event loop: %w`, err)
	}
	js, err := eventloop.NewJS(loop)
	if err != nil {
		return fmt.Errorf(`watch: event loop: %w`, err)
	}
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(context.WithoutCancel(ctx)) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := loop.Shutdown(shutdownCtx); err != nil {
			logger.Warning().Err(err).Log(`event loop shutdown failed`)
		}
	}()

	doc, err := roddom.New(page, roddom.WithDispatch(func(fn func()) error { return loop.Submit(fn) }))
	if err != nil {
		return err
	}

	env, err := jsfunc.NewEnv(
		jsfunc.WithLocation(func() string {
			info, err := page.Info()
			if err != nil {
				return c.Session.URL
			}
			return info.URL
		}),
		jsfunc.WithCookies(func() string {
			res, err := page.Eval(`() => document.cookie`)
			if err != nil {
				return ``
			}
			return res.Value.Str()
		}),
		jsfunc.WithTimeout(c.Session.JSTimeout),
		jsfunc.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	built, err := c.Build(env)
	if err != nil {
		return err
	}

	var committer analytics.Committer
	if !c.Session.TestMode {
		committer = analytics.NewLogger(logger, nil)
	}

	p, err := pipeline.New(doc, schedule.NewLoop(js), built,
		pipeline.WithSessionID(sessionID),
		pipeline.WithCommitter(committer),
		pipeline.WithTestMode(c.Session.TestMode),
		pipeline.WithLogger(base),
	)
	if err != nil {
		return err
	}

	started := make(chan error, 1)
	if err := loop.Submit(func() { started <- p.Start() }); err != nil {
		return fmt.Errorf(`watch: start: %w`, err)
	}
	select {
	case err := <-started:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return nil
	}

	logger.Info().Str(`url`, c.Session.URL).Log(`watching`)

	select {
	case <-ctx.Done():
	case err := <-loopDone:
		if err == nil {
			err = errors.New(`unexpected exit`)
		}
		return fmt.Errorf(`watch: event loop stopped: %w`, err)
	}

	stopped := make(chan struct{})
	if err := loop.Submit(func() { p.Stop(); close(stopped) }); err == nil {
		<-stopped
	}
	logger.Info().Log(`stopped`)
	return nil
}
