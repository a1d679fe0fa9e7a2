package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/photon-storage/go-common/log"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/wishlabs/deployer/chain"
	"github.com/wishlabs/deployer/cmd"
	"github.com/wishlabs/deployer/cmd/runtime/version"
	"github.com/wishlabs/deployer/compiler"
	"github.com/wishlabs/deployer/config"
	"github.com/wishlabs/deployer/database/mysql"
	"github.com/wishlabs/deployer/database/store"
	"github.com/wishlabs/deployer/engine"
	"github.com/wishlabs/deployer/notify"
	"github.com/wishlabs/deployer/queue"
)

func main() {
	app := cli.App{
		Name:    "deployer",
		Usage:   "this is a smart contract deployment engine implementation",
		Action:  exec,
		Version: version.Get(),
		Flags: []cli.Flag{
			cmd.ConfigPathFlag,
			cmd.VerbosityFlag,
			cmd.LogFormatFlag,
			cmd.LogFilenameFlag,
			cmd.LogColorFlag,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		logLvl, err := log.ParseLevel(ctx.String(cmd.VerbosityFlag.Name))
		if err != nil {
			return err
		}

		logFmt, err := log.ParseFormat(ctx.String(cmd.LogFormatFlag.Name))
		if err != nil {
			return err
		}

		if err := log.Init(logLvl, logFmt); err != nil {
			return err
		}

		logFilename := ctx.String(cmd.LogFilenameFlag.Name)
		if logFilename != "" {
			if err := log.ConfigurePersistentLogging(logFilename, false); err != nil {
				log.Error("Failed to configuring logging to disk",
					"error", err)
			}
		}
		if ctx.IsSet(cmd.LogColorFlag.Name) {
			log.ForceColor()
		}

		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("running application failed", "error", err)
	}
}

func exec(ctx *cli.Context) error {
	cfg := &config.DeployerConfig{}
	if err := config.Load(ctx.String(cmd.ConfigPathFlag.Name), cfg); err != nil {
		log.Fatal("fail on read config", "error", err)
	}

	db, err := mysql.NewMySQLDB(cfg.MySQL)
	if err != nil {
		log.Fatal("initialize mysql db error", "error", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	st := store.New(db)
	comp := compiler.NewClient(cfg.CompilerEndpoint)
	notifier := notify.New(rdb, cfg.NotifyQueue)

	var engines []*engine.Engine
	queues := make(map[string]engine.EventQueue)
	for _, network := range cfg.Networks {
		client, err := chain.Dial(network.RPCEndpoint)
		if err != nil {
			log.Fatal("connect rpc endpoint error",
				"network", network.Name,
				"error", err,
			)
		}
		defer client.Close()

		signer, err := chain.NewSigner(network.SigningKey, network.ChainID)
		if err != nil {
			log.Fatal("initialize signer error",
				"network", network.Name,
				"error", err,
			)
		}

		q := queue.New(rdb, network.Queue)
		queues[network.Name] = q

		engines = append(engines, engine.New(network, cfg.Workers, engine.Deps{
			Store:    st,
			Chain:    client,
			Signer:   signer,
			Verifier: chain.NewVerifier(client),
			Compiler: comp,
			Notifier: notifier,
			Queue:    q,
		}))
	}

	scheduler := engine.NewScheduler(
		st,
		queues,
		time.Duration(cfg.CheckSeconds)*time.Second,
	)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")

		go scheduler.Stop()
		for _, e := range engines {
			go e.Stop()
		}
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.Info("Already shutting down, interrupt more to panic", "times", i-1)
			}
		}
		panic("Panic closing the deployer service")
	}()

	var wg sync.WaitGroup
	for _, e := range engines {
		wg.Add(1)
		go func(e *engine.Engine) {
			defer wg.Done()
			e.Run(ctx.Context)
		}(e)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx.Context)
	}()

	wg.Wait()
	return nil
}
