// Command voxime is an interactive dictation console. It drives the voice
// input controller against a text buffer and a speech-to-text back end.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxime/internal/config"
	"github.com/MrWong99/voxime/internal/health"
	"github.com/MrWong99/voxime/internal/hints"
	"github.com/MrWong99/voxime/internal/observe"
	"github.com/MrWong99/voxime/internal/prefs"
	"github.com/MrWong99/voxime/internal/resilience"
	"github.com/MrWong99/voxime/internal/speech"
	"github.com/MrWong99/voxime/internal/taskqueue"
	"github.com/MrWong99/voxime/internal/textsurface"
	"github.com/MrWong99/voxime/internal/voice"
	"github.com/MrWong99/voxime/pkg/provider/stt"
	"github.com/MrWong99/voxime/pkg/provider/stt/deepgram"
	"github.com/MrWong99/voxime/pkg/types"
)

// silenceFrame paces the silent audio source: 3200 bytes of 16 kHz mono
// linear16 is 100 ms.
const silenceFrame = 100 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "WAV or raw PCM file to dictate from (default: silence)")
	locale := flag.String("locale", "en-US", "input locale of the edited field")
	languages := flag.String("languages", "", "comma-separated input languages the user has enabled (default: the locale)")
	fieldPkg := flag.String("field-package", "voxime.console", "application the edited field belongs to")
	fieldID := flag.String("field-id", "editor", "identifier of the edited field")
	inputType := flag.String("input-type", string(types.InputText), "input type of the edited field")
	flag.Parse()

	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxime: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxime: %v\n", err)
		}
		return 1
	}
	cfg := watcher.Current()

	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(level))

	slog.Info("voxime starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxime"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildSTT(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	store, prefsCheck, closePrefs, err := openPrefs(ctx, cfg.Preferences)
	if err != nil {
		slog.Error("failed to open preferences", "backend", cfg.Preferences.Backend, "err", err)
		return 1
	}
	defer closePrefs()

	var source speech.AudioSource = speech.AudioSourceFunc(func(context.Context) (io.ReadCloser, error) {
		return newSilence(silenceFrame), nil
	})
	if *audioPath != "" {
		source = speech.FileSource(*audioPath)
	}

	events := observe.NewEventLog(metrics, slog.Default())
	rec := speech.New(provider, source,
		speech.WithProviderName(cfg.Providers.STT.Name),
		speech.WithSampleRate(cfg.Voice.SampleRate),
		speech.WithMaxAlternatives(cfg.Voice.MaxAlternatives),
		speech.WithDenylist(denyRules(cfg.Voice.Denylist)...),
		speech.WithMetrics(metrics),
		speech.WithEventLogger(events),
		speech.WithAvailability(provider.Available),
	)
	defer rec.Destroy()

	attrs := types.FieldAttributes{
		Package:   *fieldPkg,
		FieldID:   *fieldID,
		InputType: types.InputType(*inputType),
		MultiLine: true,
	}
	buf := textsurface.New(attrs)
	cons := newConsole(os.Stdout, buf)
	queue := taskqueue.New()

	punct := hints.NewPunctuation(cons, store,
		hints.WithMaxShown(cfg.Hints.PunctuationMaxShown),
		hints.WithMinDeliveries(cfg.Hints.PunctuationMinDeliveries),
	)
	ctrl, err := voice.New(voice.Config{
		Host:             cons,
		Queue:            queue,
		Recognizer:       rec,
		Dialog:           cons,
		Prefs:            store,
		Hints:            punct,
		SupportedLocales: cfg.Voice.SupportedLocales,
		Logger:           slog.Default(),
	})
	if err != nil {
		slog.Error("failed to create controller", "err", err)
		return 1
	}

	buf.OnChange(func(textsurface.Snapshot) {
		queue.Post(func() { ctrl.ShowPunctuationHintIfNecessary(ctx) })
	})

	printStartupSummary(cfg, *audioPath)

	field := types.FieldContext{
		Locale:           *locale,
		EnabledLanguages: enabledLanguages(*languages, *locale),
		Attributes:       attrs,
	}
	a := &app{
		out:     os.Stdout,
		queue:   queue,
		ctrl:    ctrl,
		rec:     rec,
		buf:     buf,
		console: cons,
		field:   field,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return queue.Run(gctx) })
	g.Go(func() error {
		return watcher.Run(gctx, func(diff config.ConfigDiff, next *config.Config) {
			applyReload(diff, next, level, queue, ctrl, rec)
		})
	})

	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(
			health.Availability("recognizer", rec.Available),
			breakerCheck(provider),
			prefsCheck,
		).Register(mux)
		srv := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error { return serve(gctx, srv, cfg.Server.TLS) })
	}

	g.Go(func() error {
		defer cancel()
		return repl(gctx, os.Stdin, a)
	})

	err = g.Wait()
	queue.Close()

	// The queue has stopped; tear the controller down on this goroutine.
	ctrl.Destroy()
	events.FlushCounters()
	events.FlushLogs()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// repl reads commands from in until EOF, "quit" or ctx is cancelled.
func repl(ctx context.Context, in io.Reader, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(a.out, `type "help" for commands`)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || a.dispatch(ctx, line) {
				return nil
			}
		}
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, tls *config.TLSConfig) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr, "tls", tls != nil)
		var err error
		if tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-errCh
}

// applyReload applies the hot-reloadable parts of a changed config and logs
// what needs a restart.
func applyReload(diff config.ConfigDiff, next *config.Config, level *slog.LevelVar, queue *taskqueue.Queue, ctrl *voice.Controller, rec *speech.Recognizer) {
	if diff.LogLevelChanged {
		level.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.LocalesChanged {
		locales := diff.NewLocales
		queue.Post(func() { ctrl.SetSupportedLocales(locales) })
		slog.Info("supported locales changed", "locales", locales)
	}
	if diff.DenylistChanged {
		rec.SetDenylist(denyRules(next.Voice.Denylist)...)
		slog.Info("voice denylist changed", "rules", len(next.Voice.Denylist))
	}
	if len(diff.RestartRequired) > 0 {
		slog.Warn("config sections changed that require a restart", "sections", diff.RestartRequired)
	}
}

func denyRules(entries []config.DenyEntry) []speech.DenyRule {
	rules := make([]speech.DenyRule, 0, len(entries))
	for _, e := range entries {
		rules = append(rules, speech.DenyRule{Package: e.Package, FieldID: e.FieldID})
	}
	return rules
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the STT factories that ship with voxime.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("mock", func(entry config.ProviderEntry) (stt.Provider, error) {
		return newScripted(entry.Options)
	})

	for _, name := range reg.STTNames() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
}

// buildSTT instantiates the primary STT back end and its fallbacks behind a
// circuit-breaking failover. Without a configured primary the offline mock
// is used.
func buildSTT(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*resilience.Failover, error) {
	primary := cfg.Providers.STT
	if primary.Name == "" {
		slog.Warn("no stt provider configured, using the offline mock")
		primary = config.ProviderEntry{Name: "mock"}
	}

	bcfg := resilience.BreakerConfig{
		MaxFailures: cfg.Providers.Breaker.MaxFailures,
		Cooldown:    cfg.Providers.Breaker.Cooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			m.RecordBreakerTransition(context.Background(), name, to.String())
		},
	}

	p, err := reg.CreateSTT(primary)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", primary.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", primary.Name)
	f := resilience.NewFailover(primary.Name, p, bcfg)

	for _, entry := range cfg.Providers.STTFallbacks {
		fp, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
		}
		f.Add(entry.Name, fp)
		slog.Info("provider created", "kind", "stt-fallback", "name", entry.Name)
	}
	return f, nil
}

// breakerCheck degrades readiness while any STT back end is not closed.
func breakerCheck(f *resilience.Failover) health.Checker {
	return health.Checker{
		Name:     "stt_breakers",
		Optional: true,
		Check: func(context.Context) error {
			var tripped []string
			for name, st := range f.States() {
				if st != resilience.StateClosed {
					tripped = append(tripped, name+" "+st.String())
				}
			}
			if len(tripped) == 0 {
				return nil
			}
			slices.Sort(tripped)
			return errors.New(strings.Join(tripped, ", "))
		},
	}
}

// openPrefs opens the configured preference store and returns a readiness
// checker for it plus a close function.
func openPrefs(ctx context.Context, cfg config.PrefsConfig) (prefs.Store, health.Checker, func(), error) {
	probe := func(s prefs.Store) health.Checker {
		return health.Checker{
			Name: "preferences",
			Check: func(ctx context.Context) error {
				_, err := s.Get(ctx, prefs.KeyVoiceMode)
				if errors.Is(err, prefs.ErrNotFound) {
					return nil
				}
				return err
			},
		}
	}

	switch cfg.Backend {
	case config.PrefsFile:
		s, err := prefs.OpenFileStore(cfg.Path)
		if err != nil {
			return nil, health.Checker{}, nil, err
		}
		return s, probe(s), func() {}, nil
	case config.PrefsPostgres:
		s, pool, err := prefs.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.Profile)
		if err != nil {
			return nil, health.Checker{}, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, health.Checker{}, nil, err
		}
		return s, probe(s), pool.Close, nil
	default:
		s := prefs.NewMemStore(nil)
		return s, probe(s), func() {}, nil
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, audioPath string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxime: startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("STT", providerLabel(cfg.Providers.STT))
	for _, fb := range cfg.Providers.STTFallbacks {
		printRow("STT fallback", providerLabel(fb))
	}
	printRow("Preferences", string(cfg.Preferences.Backend))
	printRow("Locales", fmt.Sprint(len(cfg.Voice.SupportedLocales)))
	printRow("Denylist", fmt.Sprint(len(cfg.Voice.Denylist)))
	if audioPath == "" {
		audioPath = "(silence)"
	}
	printRow("Audio", audioPath)
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	}
	return e.Name
}

func printRow(kind, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// enabledLanguages splits a comma-separated language list. An empty list
// falls back to the locale alone.
func enabledLanguages(list, locale string) []string {
	var out []string
	for l := range strings.SplitSeq(list, ",") {
		if l = strings.TrimSpace(l); l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	if len(out) == 0 && locale != "" {
		out = []string{locale}
	}
	return out
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
