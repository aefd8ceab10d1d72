package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaist/studio/cmd"
	"github.com/vaist/studio/config"
	"github.com/vaist/studio/engine"
	"github.com/vaist/studio/graph"
	"github.com/vaist/studio/oto"
	"github.com/vaist/studio/remote"
	"github.com/vaist/studio/state"
	"github.com/vaist/studio/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "studio.yml", "Path of the runtime configuration.")
	addr := flag.String("addr", "", "HTTP listen address; overrides the configuration.")
	assets := flag.String("assets", "", "Directory of the audio assets. Defaults to the directory of the session file.")
	silent := flag.Bool("silent", false, "Do not open the audio device; the graph is rendered to nowhere on the wall clock.")
	writeConfig := flag.Bool("write-config", false, "Write the effective configuration, defaults and environment included, to the -config path and exit.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	cfg, err := config.Load(*configPath)
	log := cmd.NewLogger(cmd.Stderr, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("invalid configuration")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *writeConfig {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("could not write configuration")
		}
		log.Info().Str("path", *configPath).Msg("configuration written")
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Serves a session to a browser UI over websockets.\nUsage: %s [flags] session.yml\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	log, flush := cmd.InitSentry(cfg, "studio-serve", log)
	defer flush()

	filename := flag.Arg(0)
	sess, err := cmd.ReadSessionFile(filename)
	if err != nil {
		log.Fatal().Err(err).Str("file", filename).Msg("could not read session")
	}
	root := *assets
	if root == "" {
		root = filepath.Dir(filename)
	}
	rack, err := cmd.ReadRack(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load the insert rack")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sr := sess.Transport.SampleRate
	st := state.NewStudio()
	if err := st.Open(sess); err != nil {
		log.Fatal().Err(err).Msg("could not open session")
	}
	gctx := graph.NewContext(sr, cfg.BlockSize)
	defer gctx.Close()
	e := engine.New(gctx, st, cmd.EngineOptions(cfg, log, cmd.Decoder(cfg, sr, log), rack)...)
	defer e.Close()
	if err := e.Preload(ctx, cmd.DirAssets{Root: root}, &sess); err != nil {
		log.Error().Err(err).Msg("preloading assets")
	}
	if *silent {
		go renderSilently(ctx, gctx)
	} else {
		out, err := oto.Open(gctx, sr, cfg.OutputBuffer.Std())
		if err != nil {
			log.Fatal().Err(err).Msg("could not open the audio device")
		}
		defer out.Close()
	}

	rs := remote.NewServer(st, remote.WithLogger(log), remote.WithSnapshotRate(cfg.SnapshotRate), remote.WithInserts(rack))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           rs.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("session", sess.Name).Str("version", version.VersionOrHash).Msg("serving")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := rs.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		st.Transport.Stop()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		flush()
		os.Exit(1)
	}
}
