// Command tenantauth serves tenant-scoped bearer authentication over HTTP.
//
// Routes:
//
//	GET /{tenant}/tenant/whoami  tenant resolved from the path
//	GET /{tenant}/me             identity of the bearer token (auth required)
//	GET /metrics                 Prometheus metrics
//	GET /healthz                 liveness
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	authgin "github.com/PaulFidika/tenantauth/adapters/gin"
	"github.com/PaulFidika/tenantauth/adapters/gin/handlers"
	"github.com/PaulFidika/tenantauth/bearer"
	"github.com/PaulFidika/tenantauth/config"
	oidckit "github.com/PaulFidika/tenantauth/oidc"
	memorylimiter "github.com/PaulFidika/tenantauth/ratelimit/memory"
	"github.com/PaulFidika/tenantauth/tenantcfg"
)

func main() {
	log := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	setupLogger(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func setupLogger(log *logrus.Logger, cfg config.Config) {
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
	}
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := bearer.NewMetrics(reg)

	res, err := newResources(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer res.Close()

	resolver, err := tenantcfg.NewResolver(tenantcfg.ResolverConfig{
		Strategy:      tenantcfg.Strategy(strings.ToLower(cfg.Strategy)),
		Store:         res.store,
		BaseAuthority: cfg.BaseAuthority,
		Audience:      cfg.Audience,
		ClaimsIssuer:  cfg.ClaimsIssuer,
	})
	if err != nil {
		return err
	}

	engine := oidckit.NewEngine(ctx, log)
	defer engine.Close()
	cache := bearer.NewOptionsCache(resolver, defaultOptions(cfg, log),
		bearer.WithBuildTimeout(cfg.BuildTimeout),
		bearer.WithCacheLogger(log),
		bearer.WithCacheMetrics(metrics),
	)
	auth := bearer.NewAuthenticator(cache, engine, bearer.WithLogger(log), bearer.WithMetrics(metrics))

	if ml, ok := res.limiter.(*memorylimiter.Limiter); ok {
		c := cron.New()
		if _, err := c.AddFunc("@every 1m", ml.Sweep); err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
	}

	tenantOpts := []authgin.TenantOption{
		authgin.RequireTenant(cfg.RequireTenant),
		authgin.WithLogger(log),
	}
	if res.limiter != nil {
		tenantOpts = append(tenantOpts, authgin.WithRateLimiter(res.limiter))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	t := r.Group("/:tenant", authgin.TenantMiddleware(tenantOpts...))
	t.GET("/tenant/whoami", handlers.HandleTenantWhoamiGET())
	t.GET("/me", authgin.AuthRequired(auth), handlers.HandleMeGET())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func defaultOptions(cfg config.Config, log logrus.FieldLogger) bearer.Options {
	o := bearer.DefaultOptions()
	o.Events = bearer.AuditEvents(log)
	o.RequireHTTPSMetadata = cfg.RequireHTTPSMetadata
	o.UseSecurityTokenValidators = cfg.UseSecurityTokenValidators
	o.IncludeErrorDetails = cfg.IncludeErrorDetails
	o.MapInboundClaims = cfg.MapInboundClaims
	o.SaveToken = cfg.SaveToken
	o.ClockSkew = cfg.ClockSkew
	o.BackchannelTimeout = cfg.BackchannelTimeout
	o.RefreshInterval = cfg.RefreshInterval
	o.AutomaticRefreshInterval = cfg.AutomaticRefreshInterval
	return o
}
