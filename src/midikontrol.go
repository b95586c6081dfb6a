package midikontrol

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/0h41/midikontrol/src/actions"
	"github.com/0h41/midikontrol/src/configuration"
	"github.com/0h41/midikontrol/src/engine"
	"github.com/0h41/midikontrol/src/input"
	"github.com/0h41/midikontrol/src/mapping"
	"github.com/0h41/midikontrol/src/midi"
	"github.com/0h41/midikontrol/src/pulseaudio"
	"github.com/0h41/midikontrol/src/sound"
	"github.com/0h41/midikontrol/src/state"
	"github.com/0h41/midikontrol/src/webui"
	"github.com/DavidGamba/go-getoptions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	commit    string
	version   string
	buildTime string
)

func Run() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Create PulseAudio client
	paClient := pulseaudio.NewPAClient()

	// Parse command line
	opt := getoptions.New()
	opt.Self("", "Turn MIDI controllers into keyboards, mice, mixers and launchers")
	opt.HelpSynopsisArg("", "")
	opt.HelpCommand("help", opt.Alias("h"), opt.Description("Show this help"))
	opt.Bool("list", false, opt.Alias("l"), opt.Description("List MIDI ports & PulseAudio objects"))
	opt.Bool("list-midi", false, opt.Alias("m"), opt.Description("List MIDI ports"))
	opt.Bool("list-pulse", false, opt.Alias("p"), opt.Description("List PulseAudio objects"))
	opt.Bool("version", false, opt.Alias("v"), opt.Description("Show version"))
	opt.Bool("no-webui", false, opt.Description("Disable notification channel"))
	opt.Bool("debug", false, opt.Alias("d"), opt.Description("Enable debug logging"))
	webAddr := opt.String("web-addr", "", opt.Description("Notification channel address:port"))
	profilePath := opt.String("profile", "", opt.Description("Profile to load instead of the configured one"))
	if _, err := opt.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n\n%s", err, opt.Help(getoptions.HelpSynopsis))
		os.Exit(1)
	}
	if opt.Called("help") {
		fmt.Fprint(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if opt.Called("list") {
		midi.List()
		paClient.List()
		os.Exit(0)
	}
	if opt.Called("list-midi") {
		midi.List()
		os.Exit(0)
	}
	if opt.Called("list-pulse") {
		paClient.List()
		os.Exit(0)
	}
	if opt.Called("version") {
		fmt.Printf("Version %s, commit %s, built on %s\n", version, commit, buildTime)
		os.Exit(0)
	}

	// Configuration
	settings, path, err := configuration.Load()
	if err != nil {
		log.Error().Msgf("Configuration error %+v", err)
		os.Exit(1)
	}
	log.Info().Msgf("Loaded configuration from %s", path)
	if opt.Called("profile") {
		settings.Profile = *profilePath
	}
	if opt.Called("web-addr") {
		settings.WebAddr = *webAddr
	}
	if opt.Called("no-webui") {
		settings.WebUI = false
	}
	setLogLevel(settings.LogLevel, opt.Called("debug"))

	app := newApp(settings, paClient)
	if err := app.start(); err != nil {
		log.Error().Err(err).Msg("Startup failed")
		app.shutdown()
		os.Exit(1)
	}

	waitForSignal()
	app.shutdown()
}

func setLogLevel(name string, debug bool) {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

// app holds the running services.
type app struct {
	settings  configuration.Settings
	paClient  *pulseaudio.PAClient
	simulator input.Simulator
	outputs   *midi.OutputManager
	store     *state.Store
	env       *actions.Env
	engine    *engine.Engine
	manager   *configuration.ConfigManager
	watcher   *configuration.ProfileWatcher
	webServer *webui.WebUIServer

	mu      sync.Mutex
	clients map[string]*midi.MidiClient
}

func newApp(settings configuration.Settings, paClient *pulseaudio.PAClient) *app {
	simulator, err := input.NewSimulator(settings.VirtualDeviceName)
	if err != nil {
		log.Warn().Err(err).Msg("Keyboard and mouse actions are unavailable")
		simulator = nil
	}

	a := &app{
		settings:  settings,
		paClient:  paClient,
		simulator: simulator,
		outputs:   midi.NewOutputManager(),
		store:     state.NewStore(),
		clients:   make(map[string]*midi.MidiClient),
	}

	services := actions.Services{
		State:  a.store,
		Midi:   a.outputs,
		Mixer:  paClient,
		Player: sound.NewPlayer(),
	}
	if simulator != nil {
		services.Input = simulator
	}
	a.env = actions.NewEnv(services)
	a.engine = engine.New(a.env, nil, mapping.WithDeviceMatching(mapping.DeviceMatching(settings.DeviceMatching)))
	return a
}

func (a *app) start() error {
	// Start the notification channel if enabled
	if a.settings.WebUI {
		a.webServer = webui.NewWebUIServer(a.settings.WebAddr, a.engine, a.store, a.paClient)
		a.engine.SetObserver(a.webServer)
		a.env.Reporter = a.webServer
		go func() {
			if err := a.webServer.Start(); err != nil {
				log.Error().Err(err).Msg("Failed to start web server")
			}
		}()
		log.Info().Msgf("Notification channel available at ws://%s/ws", a.settings.WebAddr)
	}

	if err := ensureProfile(a.settings.Profile); err != nil {
		return err
	}
	if _, err := a.engine.LoadProfile(a.settings.Profile); err != nil {
		return err
	}

	a.manager = configuration.NewConfigManager(a.engine.Profile(), a.settings.Profile)
	if a.settings.PersistStates {
		a.store.SetObserver(a.manager.UpdateState)
	}

	if a.settings.WatchProfile {
		watcher, err := configuration.WatchProfile(a.settings.Profile, configuration.DefaultWatchDebounce, a.reload)
		if err != nil {
			log.Warn().Err(err).Msg("Profile hot reload disabled")
		} else {
			a.watcher = watcher
		}
	}

	a.listen()
	return nil
}

// ensureProfile writes an empty profile when none exists yet.
func ensureProfile(path string) error {
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	log.Info().Str("path", path).Msg("Creating empty profile")
	return configuration.SaveProfile(path, &configuration.Profile{
		ProfileName: "Default",
		MidiDevices: []configuration.DeviceConfig{},
	})
}

func (a *app) reload(path string) {
	if a.manager.IsOwnWrite() {
		return
	}
	if _, err := a.engine.LoadProfile(path); err != nil {
		return
	}
	a.manager.SetProfile(a.engine.Profile())
	a.listen()
}

// listen starts a client for every input port the active profile refers to.
// Ports already listened to are kept.
func (a *app) listen() {
	profile := a.engine.Profile()
	if profile == nil {
		return
	}
	deviceNames := lo.Map(profile.MidiDevices, func(device configuration.DeviceConfig, _ int) string {
		return device.DeviceName
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, port := range midi.MatchPorts(midi.InputPorts(), deviceNames) {
		if _, ok := a.clients[port]; ok {
			continue
		}
		client := midi.NewMidiClient(port, a.engine.Handle)
		if err := client.Start(); err != nil {
			log.Error().Err(err).Str("device", port).Msg("Could not listen to MIDI device")
			continue
		}
		a.clients[port] = client
	}
	if len(a.clients) == 0 {
		log.Warn().Msg("No MIDI input device matches the profile")
	}
}

func (a *app) shutdown() {
	log.Info().Msg("Shutting down")
	if a.watcher != nil {
		a.watcher.Close()
	}

	a.mu.Lock()
	for port, client := range a.clients {
		client.Stop()
		delete(a.clients, port)
	}
	a.mu.Unlock()

	a.engine.Close()
	if a.manager != nil {
		if err := a.manager.Flush(); errors.Is(err, configuration.ErrProfileChanged) {
			log.Warn().Str("path", a.settings.Profile).Msg("Profile has unloaded edits on disk, state changes were not saved")
		} else if err != nil {
			log.Error().Err(err).Msg("Failed to save profile")
		}
	}
	if a.webServer != nil {
		a.webServer.Stop()
	}

	a.outputs.Close()
	if a.simulator != nil {
		a.simulator.Close()
	}
	a.paClient.Close()
	midi.Close()

	stats := a.env.Stats()
	log.Info().Int64("executed", stats.Executed).Int64("failed", stats.Failed).Msg("Stopped")
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Msgf("Received signal %s, shutting down...", sig)
}
