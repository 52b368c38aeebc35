// parkwatch watches a parking area video feed and reports per-spot
// occupancy. It runs the stream engine headless: annotated frames can be
// saved to disk, zone states are logged, and a small stdin command
// surface drives assignment and highlighting.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"parkwatch/config"
	"parkwatch/detection"
	"parkwatch/engine"
	"parkwatch/occupancy"
	"parkwatch/overlay"
	"parkwatch/zones"
)

var (
	configPath  = flag.String("config", "config.yaml", "Path to the street catalogue configuration")
	streetName  = flag.String("street", "", "Street to monitor (default: first street in the config)")
	modeName    = flag.String("mode", "YOLOV", "Pipeline mode: YOLOV (detection), MATH (manual assignment only), VIDEO (pass-through)")
	saveDir     = flag.String("save-dir", "", "Directory for saving annotated JPEG frames (disabled when empty)")
	listStreets = flag.Bool("list-streets", false, "Print the configured street names and exit")
	debugMode   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *debugMode {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *listStreets {
		for _, name := range cfg.StreetNames() {
			fmt.Println(name)
		}
		return
	}

	street := *streetName
	if street == "" {
		street = cfg.StreetNames()[0]
		log.Info().Str("street", street).Msg("no street selected, using the first configured one")
	}
	resolved, err := cfg.Resolve(street)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve street configuration")
	}

	mode, err := engine.ParseMode(*modeName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid mode")
	}

	var list zones.List
	if mode != engine.ModeVideo {
		switch {
		case resolved.Zones == "":
			log.Warn().Str("street", street).Msg("no zone file configured, spots will not be drawn")
		default:
			list, err = zones.Load(resolved.Zones)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to load zone file")
			}
			log.Info().Int("zones", len(list)).Str("file", resolved.Zones).Msg("zones loaded")
		}
	}

	renderer := overlay.NewRenderer()
	var adapter *detection.Adapter
	if mode == engine.ModeYOLO {
		yolo, err := detection.NewYOLO(
			resolved.Paths.ModelWeights,
			resolved.Paths.ModelConfig,
			resolved.Paths.ClassNames,
			log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load detector")
		}
		renderer.ClassName = yolo.ClassName
		adapter = detection.NewAdapter(yolo, resolved.CarClassID, resolved.ConfidenceThreshold, log)
		defer adapter.Close()
	}

	if *saveDir != "" {
		if err := os.MkdirAll(*saveDir, 0755); err != nil {
			log.Fatal().Err(err).Msg("failed to create save directory")
		}
	}

	eng := engine.New(engine.Config{
		Open:     func() (engine.FrameSource, error) { return engine.OpenFileSource(resolved.Video) },
		Detector: adapter,
		Zones:    list,
		Renderer: renderer,
		Mode:     mode,
		Log:      log,
	})
	if err := eng.Start(); err != nil {
		log.Fatal().Err(err).Str("video", resolved.Video).Msg("failed to start session")
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info().Msg("signal received, stopping")
		eng.Stop()
	}()

	go runControl(eng, log)
	go relayStatus(eng, log)

	consume(eng, log)

	<-eng.Done()
	log.Info().Stringer("reason", eng.Reason()).Msg("session ended")
}

// consume drains engine events: optional JPEG saving, change-driven state
// logging, and cancellation of an assignment whose spot got taken.
func consume(eng *engine.Engine, log zerolog.Logger) {
	var frameIdx int
	var lastStates map[int]occupancy.Status
	warnedZone := occupancy.NoZone

	for ev := range eng.Events() {
		if *saveDir != "" {
			frameIdx++
			name := filepath.Join(*saveDir, fmt.Sprintf("frame_%06d.jpg", frameIdx))
			if ok := gocv.IMWrite(name, ev.Frame); !ok {
				log.Warn().Str("file", name).Msg("failed to save frame")
			}
		}

		if res := ev.Zones; res != nil {
			if !maps.Equal(res.States, lastStates) {
				log.Info().
					Int("occupied", res.OccupiedCount).
					Int("available", res.Available).
					Int("assigned", res.AssignedCount).
					Interface("states", res.States).
					Msg("zone states changed")
				lastStates = res.States
			}

			for idx, st := range res.States {
				if st != occupancy.StatusAssigned {
					continue
				}
				if _, taken := res.Occupant[idx]; taken && warnedZone != idx {
					warnedZone = idx
					log.Warn().Int("zone", idx).Msg("assigned spot was taken, cancelling assignment")
					eng.SetAssignedZone(occupancy.NoZone)
				}
			}
			if res.AssignedCount == 0 {
				warnedZone = occupancy.NoZone
			}
		}

		ev.Frame.Close()
	}
}

// runControl reads simple commands from stdin:
//
//	assign <n>|none
//	highlight <n>|none
//	stop
func runControl(eng *engine.Engine, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "stop":
			eng.Stop()
			return
		case "assign", "highlight":
			if len(fields) != 2 {
				log.Warn().Str("command", fields[0]).Msg("usage: assign|highlight <n>|none")
				continue
			}
			idx := occupancy.NoZone
			if fields[1] != "none" {
				n, err := strconv.Atoi(fields[1])
				if err != nil {
					log.Warn().Str("arg", fields[1]).Msg("zone index must be a number or 'none'")
					continue
				}
				idx = n
			}
			if fields[0] == "assign" {
				eng.SetAssignedZone(idx)
			} else {
				eng.SetHighlightedZone(idx)
			}
			log.Info().Str("command", fields[0]).Int("zone", idx).Msg("control applied")
		default:
			log.Warn().Str("command", fields[0]).Msg("unknown command")
		}
	}
}

func relayStatus(eng *engine.Engine, log zerolog.Logger) {
	for {
		select {
		case s := <-eng.Status():
			log.Info().Msg(s)
		case <-eng.Done():
			return
		}
	}
}
