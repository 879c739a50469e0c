package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/journeyapp/journey-client-go/internal/audit"
	"github.com/journeyapp/journey-client-go/internal/auth"
	"github.com/journeyapp/journey-client-go/internal/bus"
	"github.com/journeyapp/journey-client-go/internal/config"
	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
	"github.com/journeyapp/journey-client-go/internal/gateway"
	"github.com/journeyapp/journey-client-go/internal/oauth"
	"github.com/journeyapp/journey-client-go/internal/store"
	"github.com/journeyapp/journey-client-go/internal/voice"
)

const usage = `Usage: journey <command> [options]

Commands:
  login            Sign in with Google
  register         Create an account with Google
  logout           Clear the local session
  status           Show the current session
  set-voice        Record (or upload) a voice sample for your agent
  agent            Show the agent id and signed connection URL
  audit            List recent security audit events
`

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("failed to open session store")
	}
	defer st.Close()

	client, err := gateway.NewClient(gateway.Config{BaseURL: cfg.APIBaseURL})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build backend client")
	}

	broker := bus.NewBroker()
	defer broker.Close()

	manager := auth.NewManager(client, st, broker, audit.NewTrail(st))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "login":
		err = runLogin(ctx, cfg, manager, false)
	case "register":
		err = runLogin(ctx, cfg, manager, true)
	case "logout":
		err = runLogout(ctx, manager)
	case "status":
		err = runStatus(ctx, manager)
	case "set-voice":
		err = runSetVoice(ctx, cfg, manager, args)
	case "agent":
		err = runAgent(ctx, manager)
	case "audit":
		err = runAudit(ctx, st, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("command failed")
	}
}

// runLogin drives the Google code flow and then either logs in or registers
// with the resulting identity assertion.
func runLogin(ctx context.Context, cfg *config.Config, manager *auth.Manager, register bool) error {
	if err := cfg.RequireGoogle(); err != nil {
		return err
	}

	state, err := oauth.NewState()
	if err != nil {
		return err
	}
	callback, err := oauth.StartCallback(cfg.CallbackAddr(), state)
	if err != nil {
		return err
	}
	defer callback.Shutdown(context.Background())

	flow := oauth.NewFlow(cfg)
	authURL := flow.AuthURL(state)
	fmt.Println("Open this URL in your browser to sign in with Google:")
	fmt.Println("  " + authURL)
	openBrowser(authURL)

	code, err := callback.Wait(ctx)
	if err != nil {
		return err
	}
	assertion, err := flow.Exchange(ctx, code)
	if err != nil {
		return err
	}

	if register {
		if err := manager.Register(ctx, assertion); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
				fmt.Println("User already registered. Please use login instead.")
			}
			return err
		}
	} else {
		if err := manager.Login(ctx, assertion); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
				fmt.Println("User not found. Please register first.")
			}
			return err
		}
	}

	snap := manager.Snapshot()
	fmt.Printf("Signed in as %s (%s)\n", snap.Claims.Name, snap.Claims.Email)
	return nil
}

func runLogout(ctx context.Context, manager *auth.Manager) error {
	manager.Logout(ctx)
	fmt.Println("Logged out.")
	return nil
}

func runStatus(ctx context.Context, manager *auth.Manager) error {
	manager.Restore(ctx)
	snap := manager.Snapshot()

	if !snap.Authenticated {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("Signed in as %s (%s)\n", snap.Claims.Name, snap.Claims.Email)
	if snap.Token != nil {
		if id := snap.Token.ResolveAgentID(); id != "" {
			fmt.Printf("Agent: %s\n", id)
		}
	}
	fmt.Printf("Voice set: %t\n", snap.HasVoiceSet)
	return nil
}

func runSetVoice(ctx context.Context, cfg *config.Config, manager *auth.Manager, args []string) error {
	fs := flag.NewFlagSet("set-voice", flag.ExitOnError)
	file := fs.String("f", "", "submit an existing audio file instead of recording")
	if err := fs.Parse(args); err != nil {
		return err
	}

	manager.Restore(ctx)
	if !manager.Snapshot().Authenticated {
		return apperrors.Unauthenticated()
	}

	if *file != "" {
		audio, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
		if err := manager.SetVoice(ctx, audio); err != nil {
			return err
		}
		fmt.Println(manager.Snapshot().VoiceStatus)
		return nil
	}

	device := voice.NewCommandDevice(cfg.RecordCommand)
	recorder := voice.NewRecorder(device, manager, cfg.RecordSeconds,
		voice.WithTickObserver(func(remaining int) {
			fmt.Printf("\rRecording... %2ds remaining", remaining)
		}))
	defer recorder.Teardown()

	fmt.Printf("Recording a %d second voice sample. Speak now.\n", cfg.RecordSeconds)
	if err := recorder.Start(ctx); err != nil {
		return err
	}

	for recorder.Snapshot().State == voice.StateRecording {
		select {
		case <-ctx.Done():
			recorder.Teardown()
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	fmt.Println()

	if err := recorder.Submit(ctx); err != nil {
		return err
	}
	fmt.Println(manager.Snapshot().VoiceStatus)
	return nil
}

func runAgent(ctx context.Context, manager *auth.Manager) error {
	manager.Restore(ctx)
	snap := manager.Snapshot()
	if !snap.Authenticated {
		return apperrors.Unauthenticated()
	}

	if snap.Token != nil {
		if id := snap.Token.ResolveAgentID(); id != "" {
			fmt.Printf("Agent id: %s\n", id)
		}
	}
	if snap.SignedURL != "" {
		fmt.Printf("Signed URL: %s\n", snap.SignedURL)
	} else {
		fmt.Println("No signed connection URL available.")
	}
	return nil
}

func runAudit(ctx context.Context, st store.Store, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of events to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := st.ListAudit(ctx, *limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No audit events recorded.")
		return nil
	}
	for _, record := range records {
		line := fmt.Sprintf("%s  %s", record.CreatedAt.Format("2006-01-02 15:04:05"), record.EventType)
		if record.Detail != "" {
			line += "  " + record.Detail
		}
		fmt.Println(line)
	}
	return nil
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Debug().Err(err).Msg("could not open a browser, continue manually")
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
