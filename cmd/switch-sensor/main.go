// Command switch-sensor classifies presses on a GPIO switch and publishes
// gesture events to MQTT.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/switch-sensor/internal/config"
	"github.com/sweeney/switch-sensor/internal/gpio"
	"github.com/sweeney/switch-sensor/internal/logic"
	"github.com/sweeney/switch-sensor/internal/mqtt"
	"github.com/sweeney/switch-sensor/internal/status"
	"github.com/sweeney/switch-sensor/internal/web"
)

var (
	configPath string

	mainCmd = &cobra.Command{
		Use:           "switch-sensor",
		Short:         "Classify switch gestures and publish them to MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Poll the switch and publish gesture events",
		RunE:  runSensor,
	}
	printStateCmd = &cobra.Command{
		Use:   "print-state",
		Short: "Print the current switch level and exit",
		RunE:  runPrintState,
	}
	printConfigCmd = &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration as TOML",
		RunE:  runPrintConfig,
	}
)

func init() {
	mainCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path. TOML file read over the built-in defaults")

	f := runCmd.Flags()
	f.String("name", config.DefaultName, "Switch name used in MQTT topics")
	f.String("mode", logic.ModeMomentary.String(), `Switch mode, "momentary" or "toggle"`)
	f.Int("pin", gpio.DefaultPin, "BCM pin number of the switch")
	f.Duration("poll", config.DefaultPollMs*time.Millisecond, "GPIO polling interval")
	f.Uint32("long-press", logic.DefaultLongPressMs, "Long press threshold in ms")
	f.Uint32("double-press", logic.DefaultDoublePressMs, "Double press window in ms")
	f.Uint32("chatter", logic.DefaultChatterMs, "Chatter filter window in ms")
	f.String("broker", config.DefaultBroker, "MQTT broker address")
	f.Duration("heartbeat", config.DefaultHeartbeatMs*time.Millisecond, "Heartbeat interval (0 to disable)")
	f.String("http", config.DefaultHTTPAddr, "HTTP status address (empty to disable)")
	f.String("log-level", config.DefaultLogLevel, "Log level")

	mainCmd.AddCommand(runCmd, printStateCmd, printConfigCmd)
}

func main() {
	if err := mainCmd.Execute(); err != nil {
		log.Fatalln("fatal:", err)
	}
}

// loadConfig reads the config file, applies any flags the user set
// explicitly, validates the result and sets the log level from it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func()) {
		if err == nil && f.Lookup(name) != nil && f.Changed(name) {
			apply()
		}
	}

	set("name", func() { cfg.Name, err = f.GetString("name") })
	set("mode", func() { cfg.Mode, err = f.GetString("mode") })
	set("pin", func() { cfg.Pin, err = f.GetInt("pin") })
	set("poll", func() {
		var d time.Duration
		d, err = f.GetDuration("poll")
		cfg.PollMs = d.Milliseconds()
	})
	set("long-press", func() { cfg.LongPressMs, err = f.GetUint32("long-press") })
	set("double-press", func() { cfg.DoublePressMs, err = f.GetUint32("double-press") })
	set("chatter", func() { cfg.ChatterMs, err = f.GetUint32("chatter") })
	set("broker", func() { cfg.MQTT.Broker, err = f.GetString("broker") })
	set("heartbeat", func() {
		var d time.Duration
		d, err = f.GetDuration("heartbeat")
		cfg.HeartbeatMs = d.Milliseconds()
	})
	set("http", func() { cfg.HTTPAddr, err = f.GetString("http") })
	set("log-level", func() { cfg.LogLevel, err = f.GetString("log-level") })

	return err
}

func setupLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func runPrintState(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reader, err := gpio.NewRealReader(cfg.Chip, cfg.Pin, cfg.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	high, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), levelString(high))
	return nil
}

func runPrintConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return cfg.Encode(cmd.OutOrStdout())
}

func runSensor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reader, err := gpio.NewRealReader(cfg.Chip, cfg.Pin, cfg.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Name:        cfg.Name,
		EventsTopic: cfg.EventsTopic(),
		SystemTopic: cfg.SystemTopic(),
		BufferSize:  cfg.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Name:        cfg.Name,
		Mode:        cfg.Mode,
		Pin:         cfg.Pin,
		PollMs:      cfg.PollMs,
		HeartbeatMs: cfg.HeartbeatMs,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Buffered so a web request never waits on the poll loop.
	updates := make(chan logic.ThresholdUpdate, 8)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, updates)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTPAddr).Info("http status server listening")
	}

	log.WithFields(log.Fields{
		"name":         cfg.Name,
		"mode":         cfg.Mode,
		"pin":          cfg.Pin,
		"poll":         cfg.Poll(),
		"long_press":   cfg.LongPressMs,
		"double_press": cfg.DoublePressMs,
		"chatter":      cfg.ChatterMs,
		"broker":       cfg.MQTT.Broker,
		"heartbeat":    cfg.Heartbeat(),
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(reader, publisher, publisher, tracker, cfg.SwitchMode(), cfg.Thresholds(),
		cfg.Heartbeat(), time.Now, ticker.C, updates, sigCh)
}

// runLoop owns the detector. It publishes STARTUP, then samples the switch on
// every tick until a signal arrives, when it publishes SHUTDOWN and returns.
func runLoop(reader gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker,
	mode logic.Mode, th logic.Thresholds, heartbeat time.Duration,
	now func() time.Time, tick <-chan time.Time, updates <-chan logic.ThresholdUpdate, sig <-chan os.Signal) error {

	startTime := now()
	detector := logic.NewDetector(mode, th, startTime)
	refreshTracker(tracker, detector, mqttStatus)

	publishStatus(publisher, tracker, startTime, "STARTUP", "")

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			log.WithField("signal", name).Info("shutting down")
			refreshTracker(tracker, detector, mqttStatus)
			publishStatus(publisher, tracker, now(), "SHUTDOWN", name)
			return nil

		case u := <-updates:
			th := u.Apply(detector.Thresholds())
			detector.ApplyThresholds(th)
			log.WithFields(log.Fields{
				"long_press":   th.LongPress,
				"double_press": th.DoublePress,
				"chatter":      th.Chatter,
			}).Info("thresholds updated")
			refreshTracker(tracker, detector, mqttStatus)

		case <-tick:
			t := now()
			high, err := reader.Read()
			if err != nil {
				log.WithError(err).Warn("gpio read error")
				continue
			}

			if event := detector.Process(logic.Input{High: high, Time: t}); event != nil {
				log.WithFields(log.Fields{
					"from": event.From,
					"to":   event.To,
				}).Info("gesture")
				if err := publisher.Publish(*event); err != nil {
					log.WithError(err).Warn("publish error")
				}
				tracker.RecordEvent(*event)
			}

			if hb := detector.CheckHeartbeat(t, heartbeat); hb != nil {
				log.WithFields(log.Fields{
					"uptime":     hb.Uptime,
					"single":     hb.Counts.Single,
					"double":     hb.Counts.Double,
					"long":       hb.Counts.Long,
					"toggle_on":  hb.Counts.ToggleOn,
					"toggle_off": hb.Counts.ToggleOff,
					"filtered":   hb.Counts.Filtered,
				}).Info("heartbeat")

				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				refreshTracker(tracker, detector, mqttStatus)
				publishStatus(publisher, tracker, hb.Timestamp, "HEARTBEAT", "")
				continue
			}

			refreshTracker(tracker, detector, mqttStatus)
		}
	}
}

func refreshTracker(tracker *status.Tracker, detector *logic.Detector, mqttStatus mqtt.ConnectionStatus) {
	tracker.Update(detector.CurrentClassification(), detector.Thresholds(), detector.EventCountsSnapshot())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

// publishStatus sends a system event carrying a full status snapshot.
// STARTUP and SHUTDOWN are retained so late subscribers see the last one.
func publishStatus(publisher mqtt.Publisher, tracker *status.Tracker, ts time.Time, event, reason string) {
	snap := tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  ts,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(se); err != nil {
		log.WithError(err).WithField("event", event).Warn("failed to publish system event")
		return
	}
	log.WithField("event", event).Debug("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

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

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
