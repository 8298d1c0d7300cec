package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/code-payments/donation-ledger/pkg/metrics"
	"github.com/code-payments/donation-ledger/pkg/osutil"
)

// App is a long lived application that services HTTP requests.
//
// The lifecycle of the App is tied to the process. The app gets initialized
// before the HTTP server runs, and gets stopped after the HTTP server has
// stopped serving.
type App interface {
	// Init initializes the application in a blocking fashion. When Init
	// returns, the application is ready to start receiving requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	// Handler returns the routes served by the application
	Handler() http.Handler

	// ShutdownChan returns a channel that is closed when the application is
	// shutdown.
	//
	// If the channel is closed, the HTTP server will initiate a shutdown if it
	// has not already done so.
	ShutdownChan() <-chan struct{}

	// Stop stops the service, allowing for it to clean up any resources. When
	// Stop() returns, the process exits.
	//
	// Stop should be idempotent.
	Stop()
}

var (
	configPath = pflag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

func Run(app App, options ...Option) error {
	pflag.Parse()

	logger := logrus.StandardLogger().WithField("type", "app")

	config, err := loadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Error("failed to load config")
		os.Exit(1)
	}

	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		nr, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logrus.WithError(err).Error("error connecting to new relic")
			os.Exit(1)
		}

		metricsProvider = nr
	}

	configureLogger(config, metricsProvider)

	// pprof and expvar install themselves on the default mux, which must not
	// be exposed on the public listener
	http.DefaultServeMux = http.NewServeMux()

	if config.EnableExpvar || config.EnablePprof {
		debugHTTPMux := newDebugMux(config)
		go func() {
			for {
				if err := http.ListenAndServe(config.DebugListenAddress, debugHTTPMux); err != nil {
					logger.WithError(err).Warn("Debug HTTP server failed. Retrying in 5s...")
				}
				time.Sleep(5 * time.Second)
			}
		}()
	}

	var ballast []byte
	if config.EnableBallast {
		ballastCapacity := config.BallastCapacity
		if ballastCapacity > 0.5 {
			ballastCapacity = 0.5
		}
		ballast = make([]byte, uint64(ballastCapacity*float32(osutil.GetTotalMemory())))
	}

	memoryLeakShutdownCh := make(chan struct{})
	if config.EnableMemoryLeakCron {
		cronJob := cron.New(cron.WithLocation(time.Local))
		_, err = cronJob.AddFunc(config.MemoryLeakCronSchedule, func() {
			close(memoryLeakShutdownCh)
		})
		if err != nil {
			logger.WithError(err).Error("failed to initialize memory leak cron")
			os.Exit(1)
		}
		cronJob.Start()
	}

	lis, err := listen(config)
	if err != nil {
		logger.WithError(err).Errorf("failed to listen on %s", config.ListenAddress)
		os.Exit(1)
	}

	opts := opts{}
	for _, o := range options {
		o(&opts)
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		logger.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}

	handler := app.Handler()
	for i := len(opts.middleware) - 1; i >= 0; i-- {
		handler = opts.middleware[i](handler)
	}
	if metricsProvider != nil {
		_, handler = newrelic.WrapHandle(metricsProvider, "/", handler)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverShutdownCh := make(chan struct{})
	go func() {
		if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http serve stopped")
		} else {
			logger.Info("http server stopped")
		}

		close(serverShutdownCh)
	}()

	logger.WithField("address", lis.Addr().String()).Info("serving")

	// Wait for the following shutdown conditions:
	//    1. OS Signal telling us to shutdown
	//    2. The HTTP Server has shutdown (for whatever reason)
	//    3. The application has shutdown (for whatever reason)
	select {
	case <-osSigCh:
		logger.Info("interrupt received, shutting down")
	case <-serverShutdownCh:
		logger.Info("http server shutdown")
	case <-memoryLeakShutdownCh:
		logger.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	shutdownCh := make(chan struct{})
	go func() {
		// Both the server and the application have idempotent shutdown
		// methods, so they're both called regardless of the shutdown
		// condition.
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("failed to gracefully stop the http server")
		}
		app.Stop()

		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		// Keep the ballast reachable until exit
		if len(ballast) > 0 {
			ballast[0] = 1
		}

		return nil
	case <-time.After(config.ShutdownGracePeriod):
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

func loadConfig(path string) (BaseConfig, error) {
	// viper.ReadInConfig only returns ConfigFileNotFoundError if it has to
	// search for a default config file, so an explicitly set file that doesn't
	// exist is skipped here instead.
	if _, err := os.Stat(path); err == nil {
		viper.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	err := viper.ReadInConfig()
	_, isConfigNotFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !isConfigNotFound {
		return BaseConfig{}, err
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}

	if len(config.AppName) == 0 {
		return BaseConfig{}, errors.New("must specify an application name")
	}

	return config, nil
}

func newDebugMux(config BaseConfig) *http.ServeMux {
	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func listen(config BaseConfig) (net.Listener, error) {
	if config.TLSCertificate == "" {
		return net.Listen("tcp", config.ListenAddress)
	}

	if config.TLSKey == "" {
		return nil, errors.New("tls key must be provided if certificate is specified")
	}

	certBytes, err := LoadFile(config.TLSCertificate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}

	keyBytes, err := LoadFile(config.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}

	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}

	return tls.Listen("tcp", config.ListenAddress, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
