package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/inklet-dev/inklet/relay"
)

const RelaydVersion = "0.1.0"

func main() {
	usage := `Inklet relay daemon.

Fans drawing events out between the members of each session and hands
every new joiner a snapshot of the current scene.

Usage:
    relayd run [--config=<config>] [--listen=<listen>] [--db=<db>]
        [--redis=<redis>] [--auth_key=<auth_key>]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<config>      Toml config file path.
    --listen=<listen>      Listen address [default from config: :8090].
    --db=<db>              Bbolt scene database path. Empty keeps scenes in memory.
    --redis=<redis>        Redis address to bridge multiple relay instances.
    --auth_key=<auth_key>  Require join tokens signed with this key.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], RelaydVersion)
	if err != nil {
		panic(err)
	}

	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")

	if run_, _ := opts.Bool("run"); run_ {
		run(opts)
	}
}

func run(opts docopt.Opts) {
	config := DefaultConfig()
	if configPath, err := opts.String("--config"); err == nil && configPath != "" {
		var err error
		config, err = loadConfig(configPath)
		if err != nil {
			glog.Errorf("[relayd]%s\n", err)
			os.Exit(1)
		}
	}
	// flags override file values
	if listen, err := opts.String("--listen"); err == nil && listen != "" {
		config.Listen = listen
	}
	if db, err := opts.String("--db"); err == nil && db != "" {
		config.Db = db
	}
	if redisAddr, err := opts.String("--redis"); err == nil && redisAddr != "" {
		config.Redis = redisAddr
	}
	if authKey, err := opts.String("--auth_key"); err == nil && authKey != "" {
		config.AuthKey = authKey
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store relay.SessionStore
	if config.Db != "" {
		boltStore, err := relay.NewBoltSessionStore(config.Db)
		if err != nil {
			glog.Errorf("[relayd]open %s error = %s\n", config.Db, err)
			os.Exit(1)
		}
		store = boltStore
		glog.Infof("[relayd]scenes persisted to %s\n", config.Db)
	} else {
		store = relay.NewMemorySessionStore()
	}
	defer store.Close()

	var bridge *relay.RedisBridge
	if config.Redis != "" {
		var err error
		bridge, err = relay.NewRedisBridge(cancelCtx, config.Redis)
		if err != nil {
			glog.Errorf("[relayd]redis %s error = %s\n", config.Redis, err)
			os.Exit(1)
		}
		defer bridge.Close()
		glog.Infof("[relayd]bridged via redis at %s as %s\n", config.Redis, bridge.InstanceId())
	}

	settings := relay.DefaultServerSettings()
	if config.AuthKey != "" {
		settings.AuthKey = []byte(config.AuthKey)
		glog.Infof("[relayd]join tokens required\n")
	}

	server := relay.NewServer(cancelCtx, store, bridge, settings)
	defer server.Close()

	httpServer := &http.Server{
		Addr:    config.Listen,
		Handler: server.Handler(),
	}
	go func() {
		glog.Infof("[relayd]listening on %s\n", config.Listen)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			glog.Errorf("[relayd]serve error = %s\n", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	glog.Infof("[relayd]shutting down\n")
	httpServer.Shutdown(cancelCtx)
}
