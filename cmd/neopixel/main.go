package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/host/v3"

	"github.com/coreman2200/neopixel/internal/config"
	"github.com/coreman2200/neopixel/internal/control"
	"github.com/coreman2200/neopixel/internal/patterns"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml")
		driver     = flag.String("driver", "", "driver: spi | nrzled | console | sim")
		pin        = flag.String("pin", "", "data pin name, e.g. GPIO10")
		pixels     = flag.Int("pixels", 0, "number of pixels")
		bpp        = flag.Int("bpp", 0, "channels per pixel when no order is given (3 or 4)")
		order      = flag.String("order", "", "channel order, e.g. GRB, RGBW")
		brightness = flag.Float64("brightness", -1, "global brightness 0..1")
		fill       = flag.String("fill", "", "color to fill the strip with at start")
		pattern    = flag.String("pattern", "", "diagnostic pattern to play at start: index_sweep | rgb_channels | rainbow")
		steps      = flag.Int("steps", 90, "frames of a cycling pattern")
		fps        = flag.Int("fps", 30, "pattern frames per second")
		listen     = flag.String("listen", "", "HTTP listen address; reads commands from stdin when empty")
		save       = flag.String("save", "", "write the effective config to this path and exit")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Config file values override the defaults; explicit flags override both.
	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
		}
		merge(cfg, c)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "pin":
			cfg.Pin = *pin
		case "pixels":
			cfg.Pixels = *pixels
		case "bpp":
			cfg.BPP = *bpp
			cfg.Order = ""
		case "order":
			cfg.Order = *order
		case "brightness":
			cfg.Brightness = brightness
		case "listen":
			cfg.Listen = *listen
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	k := patterns.None
	if *pattern != "" {
		var err error
		if k, err = patterns.ParseKind(*pattern); err != nil {
			log.Fatal().Err(err).Msg("invalid pattern")
		}
	}
	if *save != "" {
		if err := config.Save(*save, cfg); err != nil {
			log.Fatal().Err(err).Str("path", *save).Msg("config save failed")
		}
		log.Info().Str("path", *save).Msg("config saved")
		return
	}

	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("host init failed; only simulated output is available")
	}

	o, err := cfg.Opts()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid strip options")
	}
	out, err := openOutput(cfg, &o)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Driver).Msg("driver init failed")
	}
	b, err := newBuffer(out, &o)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't create pixel buffer")
	}
	defer out.Close()
	log.Info().
		Str("driver", cfg.Driver).
		Str("pin", out.pin.String()).
		Int("pixels", b.Len()).
		Stringer("order", b.Order()).
		Msg("strip ready")

	s := control.NewSession(b)
	s.Driver = cfg.Driver
	if *fill != "" {
		if reply, err := s.Exec("FILL " + *fill); err != nil {
			log.Error().Err(err).Str("color", *fill).Msg("fill failed")
		} else {
			log.Debug().Str("reply", reply).Msg("filled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if k != patterns.None {
		log.Info().Str("pattern", string(k)).Int("fps", *fps).Msg("playing pattern")
		if err := s.Play(ctx, patterns.NewRunner(k, *steps), *fps); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("pattern failed")
		}
	}

	done := make(chan struct{})
	var srv *http.Server
	if cfg.Listen != "" {
		srv = &http.Server{
			Addr:         cfg.Listen,
			Handler:      s.Mux(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Listen).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server crashed")
				close(done)
			}
		}()
	} else {
		go func() {
			if err := s.ServeLines(os.Stdin, os.Stdout); err != nil {
				log.Error().Err(err).Msg("command input failed")
			}
			close(done)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case <-done:
	}

	if srv != nil {
		_ = srv.Close()
	}
	if err := s.Close(); err != nil {
		log.Error().Err(err).Msg("release failed")
	}
}

// merge copies the values set in c onto dst.
func merge(dst, c *config.Config) {
	if c.Driver != "" {
		dst.Driver = c.Driver
	}
	if c.Pin != "" {
		dst.Pin = c.Pin
	}
	if c.Pixels > 0 {
		dst.Pixels = c.Pixels
	}
	if c.BPP != 0 {
		dst.BPP = c.BPP
		dst.Order = c.Order
	}
	if c.Order != "" {
		dst.Order = c.Order
	}
	if c.Brightness != nil {
		dst.Brightness = c.Brightness
	}
	if c.AutoWrite != nil {
		dst.AutoWrite = c.AutoWrite
	}
	if c.Listen != "" {
		dst.Listen = c.Listen
	}
	if c.SPI.Port != "" {
		dst.SPI.Port = c.SPI.Port
	}
	if c.SPI.FreqHz != 0 {
		dst.SPI.FreqHz = c.SPI.FreqHz
	}
	if c.SPI.ResetUs != 0 {
		dst.SPI.ResetUs = c.SPI.ResetUs
	}
}
