// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	ethlog "github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/lockforge/lockledger/api"
	"github.com/lockforge/lockledger/eventdb"
	"github.com/lockforge/lockledger/genesis"
	"github.com/lockforge/lockledger/kv"
	"github.com/lockforge/lockledger/metrics"
	"github.com/lockforge/lockledger/state"
)

var (
	version   string
	gitCommit string

	log = ethlog.New("pkg", "main")
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "lockledger",
		Usage:     "token-locking ledger service",
		Copyright: "2026 The LockLedger developers",
		Flags: []cli.Flag{
			dataDirFlag,
			genesisFlag,
			apiAddrFlag,
			apiCorsFlag,
			verbosityFlag,
			enableMetricsFlag,
			metricsAddrFlag,
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	initLogger(ctx)
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	config, err := genesis.Load(ctx.String(genesisFlag.Name))
	if err != nil {
		return err
	}

	dataDir := ctx.String(dataDirFlag.Name)

	mainDB, err := openMainDB(dataDir)
	if err != nil {
		return err
	}
	defer func() { log.Info("closing main database..."); mainDB.Close() }()

	eventDB, err := openEventDB(dataDir)
	if err != nil {
		return err
	}
	defer func() { log.Info("closing event database..."); eventDB.Close() }()

	st := state.New(mainDB)
	st.NewCheckpoint()

	led, _, err := config.Wire(st)
	if err != nil {
		return err
	}
	owner, err := led.Owner()
	if err != nil {
		return err
	}
	if owner.IsZero() {
		log.Info("building genesis state")
		if led, _, err = config.Build(st); err != nil {
			return err
		}
		if err := st.Commit(); err != nil {
			return err
		}
	}

	now := func() uint64 { return uint64(time.Now().Unix()) }
	handler := api.New(api.NewLedgerAPI(led, eventDB, now), parseCorsOrigins(ctx))

	return serve(ctx, handler)
}

func serve(ctx *cli.Context, apiHandler http.Handler) error {
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	apiSrv := &http.Server{Addr: ctx.String(apiAddrFlag.Name), Handler: apiHandler}
	group.Go(func() error {
		log.Info("API service started", "addr", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	var metricsSrv *http.Server
	if ctx.Bool(enableMetricsFlag.Name) {
		metricsSrv = &http.Server{Addr: ctx.String(metricsAddrFlag.Name), Handler: metrics.HTTPHandler()}
		group.Go(func() error {
			log.Info("metrics service started", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		apiSrv.Shutdown(shutdownCtx)
		if metricsSrv != nil {
			metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	return group.Wait()
}

func initLogger(ctx *cli.Context) {
	verbosity := ctx.Int(verbosityFlag.Name)
	handler := ethlog.NewTerminalHandlerWithLevel(os.Stderr, ethlog.FromLegacyLevel(verbosity), false)
	ethlog.SetDefault(ethlog.NewLogger(handler))
}

func openMainDB(dataDir string) (*kv.LevelDB, error) {
	if dataDir == "" {
		log.Warn("data directory not set, running in memory")
		return kv.NewMemLevelDB(), nil
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	return kv.NewLevelDB(filepath.Join(dataDir, "state.db"), kv.Options{})
}

func openEventDB(dataDir string) (*eventdb.EventDB, error) {
	if dataDir == "" {
		return eventdb.NewMem()
	}
	return eventdb.New(filepath.Join(dataDir, "events.db"))
}

func parseCorsOrigins(ctx *cli.Context) []string {
	cors := ctx.String(apiCorsFlag.Name)
	if cors == "" {
		return []string{}
	}
	var origins []string
	for _, origin := range strings.Split(cors, ",") {
		origins = append(origins, strings.TrimSpace(origin))
	}
	return origins
}
