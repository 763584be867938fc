package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/nv.go/pkg/env"
	fx "github.com/robotalks/nv.go/pkg/framework"
	"github.com/robotalks/nv.go/pkg/mqtt"
	"github.com/robotalks/nv.go/pkg/nv/media/remote"
)

var (
	listenAddr = ":7300"
	wsAddr     = ""
	serveMQTT  = false
)

func init() {
	env.SetupFlags()
	flag.StringVar(&listenAddr, "listen", listenAddr, "TCP address to serve the media on, empty to disable")
	flag.StringVar(&wsAddr, "ws", wsAddr, "HTTP address to serve the media over websocket at /nv")
	flag.BoolVar(&serveMQTT, "serve-mqtt", serveMQTT, "Serve the media on the MQTT topics of the device")
}

func main() {
	flag.Parse()

	conf, err := env.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	if conf.Media == env.MediaRemote {
		log.Fatalln("nvsim serves local media, not remote")
	}
	media, err := conf.OpenBackend()
	if err != nil {
		log.Fatalln(err)
	}
	srv := remote.NewServer(media)

	runner := fx.NewRunner().HandleSignals()
	if listenAddr != "" {
		ln, err := net.Listen("tcp", listenAddr)
		if err != nil {
			log.Fatalln(err)
		}
		glog.Infof("serving %s media on tcp %s", conf.Media, ln.Addr())
		runner.Go(fx.NamedRun("tcp", fx.RunFunc(func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, ln)
		})))
	}
	if wsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/nv", srv.WebsocketHandler())
		hs := &http.Server{Addr: wsAddr, Handler: mux}
		glog.Infof("serving %s media on ws://%s/nv", conf.Media, wsAddr)
		runner.Go(fx.NamedRun("ws", fx.RunFunc(func(ctx context.Context) error {
			return fx.RunUntilCanceled(ctx, func() { hs.Close() }, hs.ListenAndServe)
		})))
	}
	if serveMQTT {
		q, err := conf.NewQueue()
		if err != nil {
			log.Fatalln(err)
		}
		if q == nil {
			log.Fatalln("-serve-mqtt requires -mqtt")
		}
		defer q.Close()
		req, rsp := env.MediaTopics(conf.DeviceID)
		glog.Infof("serving %s media on mqtt %s", conf.Media, req)
		runner.Go(fx.NamedRun("mqtt", fx.RunFunc(func(ctx context.Context) error {
			stream := mqtt.NewStream(q, req, rsp)
			return fx.RunUntilCanceled(ctx, func() { stream.Close() }, func() error {
				return srv.Serve(ctx, stream)
			})
		})))
	}
	if len(runner.Runners) == 0 {
		log.Fatalln("nothing to serve, set -listen, -ws or -serve-mqtt")
	}
	if err := runner.Wait(); err != nil {
		glog.Errorf("stopped: %v", err)
	}
	glog.Flush()
}
