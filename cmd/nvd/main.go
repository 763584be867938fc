package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"

	"github.com/robotalks/nv.go/pkg/env"
	fx "github.com/robotalks/nv.go/pkg/framework"
	"github.com/robotalks/nv.go/pkg/telemetry"
)

var (
	pollInterval    = fx.DefaultInterval
	metricsExporter = telemetry.ExporterNone
	metricsListen   string
)

func init() {
	env.SetupFlags()
	flag.DurationVar(&pollInterval, "poll", pollInterval, "Flush poll interval")
	flag.StringVar(&metricsExporter, "metrics", metricsExporter, "Metrics exporter: none, stdout or prometheus")
	flag.StringVar(&metricsListen, "metrics-listen", "", "Serve prometheus metrics on this address")
}

func main() {
	flag.Parse()

	conf, err := env.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	store := conf.MustOpenStore()
	if !store.Valid() {
		glog.Warningf("%s image is not valid, format it before use", conf.Media)
	}

	reporter := &telemetry.Reporter{
		Source:   store,
		Device:   conf.DeviceID,
		Media:    conf.Media,
		Interval: time.Duration(conf.ReportInterval),
	}
	provider, err := telemetry.NewMeterProvider(metricsExporter)
	if err != nil {
		log.Fatalln(err)
	}
	otel.SetMeterProvider(provider)
	if reporter.Metrics, err = telemetry.NewMetrics(otel.Meter("nvd"), conf.DeviceID); err != nil {
		log.Fatalln(err)
	}
	q, err := conf.NewQueue()
	if err != nil {
		log.Fatalln(err)
	}
	if q != nil {
		defer q.Close()
		reporter.Publisher = q
	}

	loop := fx.NewLoop().Add(store, reporter)
	loop.Interval = pollInterval
	runner := fx.NewRunner().HandleSignals().Go(fx.NamedRun("loop", loop))
	if metricsListen != "" {
		ln, err := net.Listen("tcp", metricsListen)
		if err != nil {
			log.Fatalln(err)
		}
		srv := &http.Server{Handler: telemetry.MetricsHandler()}
		runner.Go(fx.NamedRun("metrics", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunUntilCanceled(ctx, func() { srv.Close() }, func() error {
				if err := srv.Serve(ln); err != http.ErrServerClosed {
					return err
				}
				return nil
			})
		})))
	}
	if err := runner.Wait(); err != nil {
		glog.Errorf("stopped: %v", err)
	}
	if err := store.Close(); err != nil {
		glog.Errorf("close: %v", err)
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		glog.Errorf("metrics: %v", err)
	}
	glog.Flush()
}
