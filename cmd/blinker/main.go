// Command blinker drives a board status LED through non-blocking blink
// sequences, controlled over MQTT and HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/blinker/internal/board"
	"github.com/sweeney/blinker/internal/command"
	"github.com/sweeney/blinker/internal/config"
	"github.com/sweeney/blinker/internal/control"
	"github.com/sweeney/blinker/internal/indicator"
	"github.com/sweeney/blinker/internal/metrics"
	"github.com/sweeney/blinker/internal/mqtt"
	"github.com/sweeney/blinker/internal/status"
	"github.com/sweeney/blinker/internal/web"
)

// commandQueue is how many remote requests may wait for the run loop.
const commandQueue = 16

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries settings shared by every subcommand.
type app struct {
	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:          "blinker",
		Short:        "Non-blocking status LED controller",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(&a.cfg, cmd); err != nil {
				return err
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.log = newLogger(a.cfg.LogLevel)
			return nil
		},
	}
	config.RegisterFlags(root.PersistentFlags(), &a.cfg)

	root.AddCommand(a.runCmd(), a.blinkCmd(), a.demoCmd(), a.boardsCmd())
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(lvl)
}

// openIndicator resolves the board, opens its output and applies the
// configured colour. notify may be nil.
func (a *app) openIndicator(notify func(on bool)) (*indicator.Observed, board.Profile, string, error) {
	profile, model := a.cfg.Profile(board.DeviceTreeModelPath)
	out, err := board.Open(profile, a.cfg.SysfsRoot, a.log)
	if err != nil {
		return nil, profile, model, fmt.Errorf("open indicator: %w", err)
	}
	obs := indicator.Observe(out, notify)

	if a.cfg.Color != "" {
		c, err := indicator.ParseColor(a.cfg.Color)
		if err != nil {
			obs.Close()
			return nil, profile, model, err
		}
		if !obs.ApplyColor(indicator.Scale(c, uint8(a.cfg.Brightness))) {
			a.log.Info().Str("board", profile.Name).Msg("indicator is single-colour, ignoring colour")
		}
	}

	a.log.Info().
		Str("board", profile.Name).
		Str("model", model).
		Str("driver", string(profile.Driver)).
		Msg("indicator ready")
	return obs, profile, model, nil
}

func boardInfo(p board.Profile, model string) status.BoardInfo {
	return status.BoardInfo{
		Name:      p.Name,
		Model:     model,
		Driver:    string(p.Driver),
		Chip:      p.Chip,
		Line:      p.Line,
		ActiveLow: p.ActiveLow,
		SysfsName: p.SysfsName,
		RGB:       p.RGB,
	}
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon: MQTT and HTTP control, status page, metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDaemon()
		},
	}
}

func (a *app) runDaemon() error {
	cfg := a.cfg
	m := metrics.New()

	out, profile, model, err := a.openIndicator(m.IndicatorChanged)
	if err != nil {
		return err
	}
	defer out.Close()

	ws, err := cfg.ResolveWSBroker()
	if err != nil {
		a.log.Warn().Err(err).Msg("live status page disabled")
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	startTime := time.Now()
	tracker := status.NewTracker(startTime, boardInfo(profile, model), status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPPort:    cfg.HTTP,
		WSBroker:    ws,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	commands := make(chan command.Submission, commandQueue)
	submit := func(sub command.Submission) bool {
		select {
		case commands <- sub:
			return true
		default:
			return false
		}
	}

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	}
	if cfg.Broker != "" {
		publisher = mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.Broker,
			ClientID: cfg.ClientID,
			Logger:   a.log,
			OnCommand: func(payload []byte) {
				if !submit(command.Parse("mqtt", payload)) {
					a.log.Warn().Msg("command queue full, dropping mqtt request")
				}
			},
		})
	} else {
		a.log.Info().Msg("no broker configured, mqtt disabled")
		publisher = offlinePublisher{}
	}
	defer publisher.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		a.log.Warn().Err(err).Msg("failed to publish startup event")
	} else {
		a.log.Info().Msg("published startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, m.Handler(), submit)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		a.log.Info().Str("addr", cfg.HTTP).Msg("http server listening")
	}

	a.log.Info().
		Dur("poll", cfg.Poll).
		Dur("heartbeat", cfg.Heartbeat).
		Str("broker", cfg.Broker).
		Msg("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctrl := control.New(out, out, startTime, a.log)
	ctrl.SetBrightness(uint8(cfg.Brightness))

	l := &loop{
		ctrl:       ctrl,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		metrics:    m,
		hw:         out,
		heartbeat:  cfg.Heartbeat,
		log:        a.log,
	}
	return runLoop(l, time.Now, ticker.C, commands, sigCh)
}

// loop holds what the run loop drives. Everything but ctrl and publisher
// may be nil.
type loop struct {
	ctrl       *control.Controller
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	hw         indicator.Output
	heartbeat  time.Duration
	log        zerolog.Logger
}

// runLoop owns the controller: ticks poll the machine, commands from MQTT
// and HTTP arrive on one channel, and a signal ends the loop.
func runLoop(l *loop, now func() time.Time, tick <-chan time.Time, commands <-chan command.Submission, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.log.Info().Str("signal", signalName).Msg("shutting down")

			t := now()
			l.emit(l.ctrl.Shutdown(t, signalName))

			event := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if l.tracker != nil {
				l.refresh()
				event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				l.log.Warn().Err(err).Msg("failed to publish shutdown event")
			} else {
				l.log.Info().Msg("published shutdown event")
			}
			return nil

		case sub := <-commands:
			l.emit(l.ctrl.Handle(sub, now()))
			l.refresh()

		case <-tick:
			t := now()
			l.emit(l.ctrl.Tick(t))

			if hb := l.ctrl.CheckHeartbeat(t, l.heartbeat); hb != nil {
				l.heartbeatEvent(hb)
			}
			l.refresh()
		}
	}
}

func (l *loop) emit(events []control.Event) {
	for _, ev := range events {
		entry := l.log.Info()
		if ev.Type == control.EventRejected {
			entry = l.log.Warn().Str("error", ev.Detail)
		}
		entry.
			Str("event", string(ev.Type)).
			Str("kind", ev.Kind).
			Str("plan", ev.Plan).
			Str("reason", ev.Reason).
			Str("source", ev.Source).
			Msg("sequence event")

		if l.metrics != nil {
			switch ev.Type {
			case control.EventStarted:
				l.metrics.SequenceStarted(ev.Kind)
			case control.EventCompleted:
				l.metrics.SequenceCompleted(ev.Kind)
			case control.EventStopped:
				l.metrics.SequenceStopped()
			case control.EventRejected:
				l.metrics.RequestRejected(ev.Reason)
			}
		}

		if err := l.publisher.Publish(ev); err != nil {
			// Don't stop the loop on publish failure
			l.log.Warn().Err(err).Msg("publish error")
		}
	}
}

func (l *loop) heartbeatEvent(hb *control.HeartbeatData) {
	l.log.Info().
		Dur("uptime", hb.Uptime).
		Int("started", hb.Counts.Started).
		Int("completed", hb.Counts.Completed).
		Int("stopped", hb.Counts.Stopped).
		Int("rejected", hb.Counts.Rejected).
		Msg("heartbeat")
	if l.hw != nil {
		if err := l.hw.Err(); err != nil {
			l.log.Warn().Err(err).Msg("indicator hardware error")
		}
	}

	event := mqtt.SystemEvent{
		Timestamp: hb.Timestamp,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		l.refresh()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.log.Warn().Err(err).Msg("heartbeat publish error")
	}
}

// refresh copies controller state into the tracker for HTTP readers.
func (l *loop) refresh() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.ctrl.State(), l.ctrl.Transitions(), l.ctrl.CountsSnapshot())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// offlinePublisher stands in when no broker is configured.
type offlinePublisher struct{}

func (offlinePublisher) Publish(control.Event) error          { return nil }
func (offlinePublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (offlinePublisher) Close() error                         { return nil }
func (offlinePublisher) IsConnected() bool                    { return false }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
