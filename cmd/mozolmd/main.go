// Command mozolmd serves a configured language-model hub over
// net/rpc (spec.md §6's "RPC service") plus a Prometheus /metrics
// endpoint as a single long-running server (the offline cmd/compile +
// cmd/score roles are taken by mozolm-train and mozolm-eval).
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"net/rpc"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kho/mozolm/rpcserver"
	"github.com/kho/mozolm/storage"
)

func main() {
	config := flag.String("config", "", "hub config YAML file")
	rpcAddr := flag.String("rpc_addr", ":8495", "RPC listen address")
	metricsAddr := flag.String("metrics_addr", ":8496", "Prometheus /metrics listen address")
	workerPoolSize := flag.Int("worker_pool_size", rpcserver.DefaultWorkerPoolSize, "max concurrent in-flight RPC handlers")
	flag.Parse()

	if *config == "" {
		glog.Fatal("mozolmd: -config is required")
	}
	cfg, err := storage.LoadModelHubConfig(*config)
	if err != nil {
		glog.Fatal(err)
	}
	hub, err := storage.BuildHub(cfg)
	if err != nil {
		glog.Fatal(err)
	}

	server := rpc.NewServer()
	if err := server.Register(rpcserver.NewServer(hub, *workerPoolSize)); err != nil {
		glog.Fatal(err)
	}
	rpcListener, err := net.Listen("tcp", *rpcAddr)
	if err != nil {
		glog.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: *metricsAddr, Handler: mux}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		glog.Infof("mozolmd: serving RPC on %s", *rpcAddr)
		server.Accept(rpcListener)
		return nil
	})
	g.Go(func() error {
		glog.Infof("mozolmd: serving metrics on %s", *metricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		rpcListener.Close()
		return httpServer.Close()
	})

	if err := g.Wait(); err != nil {
		glog.Fatal(err)
	}
}
