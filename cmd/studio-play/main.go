package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaist/studio"
	"github.com/vaist/studio/cmd"
	"github.com/vaist/studio/config"
	"github.com/vaist/studio/engine"
	"github.com/vaist/studio/graph"
	"github.com/vaist/studio/timebase"
	"github.com/vaist/studio/version"
)

func main() {
	configPath := flag.String("config", "studio.yml", "Path of the runtime configuration.")
	assets := flag.String("assets", "", "Directory of the audio assets. Defaults to the directory of the session file.")
	directory := flag.String("o", "", "Directory where to output rendered files. The directory and its parents are created if needed. By default, the working directory.")
	play := flag.Bool("p", false, "Play the session (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Bounce the session to a .raw file.")
	wavOut := flag.Bool("w", false, "Bounce the session to a .wav file.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	from := flag.Float64("from", 0, "Start at this many seconds into the session.")
	to := flag.Float64("to", -1, "Stop at this many seconds into the session. Negative values mean the end of the last clip.")
	quiet := flag.Bool("q", false, "Do not print the transport status while playing.")
	help := flag.Bool("h", false, "Show help.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut {
		*play = true
	}
	cfg, err := config.Load(*configPath)
	log := cmd.NewLogger(cmd.Stderr, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("invalid configuration")
	}
	log, flush := cmd.InitSentry(cfg, "studio-play", log)
	defer flush()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	process := func(filename string) error {
		sess, err := cmd.ReadSessionFile(filename)
		if err != nil {
			return err
		}
		sr := sess.Transport.SampleRate
		start := timebase.SecondsToSamples(*from, sr)
		end := sess.EndSamples()
		if *to >= 0 {
			end = timebase.SecondsToSamples(*to, sr)
		}
		if end <= start {
			return fmt.Errorf("nothing to render between %v and %v", start, end)
		}
		root := *assets
		if root == "" {
			root = filepath.Dir(filename)
		}
		rack, err := cmd.ReadRack(cfg)
		if err != nil {
			return err
		}
		gctx := graph.NewContext(sr, cfg.BlockSize)
		defer gctx.Close()
		st := studioFor(sess)
		e := engine.New(gctx, st, cmd.EngineOptions(cfg, log, cmd.Decoder(cfg, sr, log), rack)...)
		defer e.Close()
		t0 := time.Now()
		if err := e.Preload(ctx, cmd.DirAssets{Root: root}, &sess); err != nil {
			return err
		}
		log.Info().Str("session", sess.Name).Int("assets", e.Cache().Len()).Dur("took", time.Since(t0)).Msg("assets loaded")
		output := func(extension string, contents []byte) error {
			dir := *directory
			if dir == "" {
				if dir, err = os.Getwd(); err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %w", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %w", dir, err)
			}
			_, name := filepath.Split(filename)
			f := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+extension)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %w", f, err)
			}
			log.Info().Str("file", f).Msg("written")
			return nil
		}
		if *rawOut || *wavOut {
			buffer, err := e.Bounce(ctx, start, end)
			if err != nil {
				return fmt.Errorf("bounce failed: %w", err)
			}
			if *rawOut {
				raw, err := studio.Raw(buffer, *pcm)
				if err != nil {
					return fmt.Errorf("could not generate .raw file: %w", err)
				}
				if err := output(".raw", raw); err != nil {
					return err
				}
			}
			if *wavOut {
				wav, err := studio.Wav(buffer, *pcm)
				if err != nil {
					return fmt.Errorf("could not generate .wav file: %w", err)
				}
				if err := output(".wav", wav); err != nil {
					return err
				}
			}
		}
		if *play {
			return playSession(ctx, cfg, e, st, start, end, *quiet)
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if err := process(param); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			log.Error().Err(err).Str("file", param).Msg("could not process session")
			retval = 1
		}
	}
	flush()
	os.Exit(retval)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Command line utility for playing and bouncing session files.\nUsage: %s [flags] [session.yml ...]\n", os.Args[0])
	flag.PrintDefaults()
}
