// ABOUTME: Terminal chat client: realtime two-party conversation with translation.
// ABOUTME: Wires config, creds, api clients, channel, session, and voice bridge.

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/crosstalk-chat/crosstalk/internal/api"
	"github.com/crosstalk-chat/crosstalk/internal/chat"
	"github.com/crosstalk-chat/crosstalk/internal/config"
	"github.com/crosstalk-chat/crosstalk/internal/creds"
	"github.com/crosstalk-chat/crosstalk/internal/session"
	"github.com/crosstalk-chat/crosstalk/internal/transport"
	"github.com/crosstalk-chat/crosstalk/internal/voice"
)

var (
	ownStyle     = color.New(color.FgGreen)
	partnerStyle = color.New(color.FgCyan)
	noticeStyle  = color.New(color.Faint)
	warnStyle    = color.New(color.FgYellow)
	errStyle     = color.New(color.FgRed)
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	server := flag.String("server", "", "Message service base URL (overrides config)")
	ws := flag.String("ws", "", "Realtime channel websocket URL (overrides config)")
	user := flag.String("user", "", "Local user id (overrides cached profile)")
	partner := flag.String("partner", "", "Partner user id")
	language := flag.String("language", "", "Preferred language (overrides cached profile)")
	partnerLanguage := flag.String("partner-language", "", "Partner's preferred language (translation target for sends)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *server, *ws)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *user, *partner, *language, *partnerLanguage); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// loadConfig reads the config file when given, otherwise starts from
// defaults; flags override the server endpoints either way.
func loadConfig(path, server, ws string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if server != "" {
		cfg.Server.APIBaseURL = server
		if cfg.Server.TranslateBaseURL == "" {
			cfg.Server.TranslateBaseURL = server
		}
	}
	if ws != "" {
		cfg.Server.ChannelURL = ws
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("set -server and -ws or provide a config file: %w", err)
	}
	return cfg, nil
}

// setupLogging configures the default slog logger from config.
func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// identity resolves the local user from the credential store, letting
// flags override the cached profile.
func identity(store *creds.Store, userFlag, languageFlag string) (token, userID, lang string) {
	userID = userFlag
	lang = languageFlag

	saved, err := store.Load()
	if err == nil {
		token = saved.AccessToken
		if userID == "" {
			userID = saved.Profile.ID
		}
		if lang == "" {
			lang = saved.Profile.PreferredLanguage
		}
	} else if !errors.Is(err, creds.ErrNoCredentials) {
		slog.Warn("could not load stored credentials", "error", err)
	}

	if env := os.Getenv("CROSSTALK_TOKEN"); env != "" {
		token = env
	}
	if lang == "" {
		lang = "english"
	}
	return token, userID, lang
}

func run(ctx context.Context, cfg *config.Config, userFlag, partnerID, languageFlag, partnerLanguage string) error {
	store, err := creds.Open(cfg.Creds.Path, nil)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer store.Close()

	token, userID, language := identity(store, userFlag, languageFlag)
	if userID == "" {
		return fmt.Errorf("no user id: pass -user or log in first")
	}
	if partnerID == "" {
		return fmt.Errorf("no partner: pass -partner <user id>")
	}

	msgSvc := api.NewMessageClient(api.NewClient(cfg.Server.APIBaseURL, token, nil))
	translator := api.NewTranslateClient(api.NewClient(cfg.Server.TranslateBaseURL, token, nil))

	channel := transport.NewWebsocketChannel(cfg.Server.ChannelURL, transport.Options{
		ReconnectAttempts: cfg.Channel.ReconnectAttempts,
		ReconnectDelay:    cfg.Channel.ReconnectDelay,
	}, nil)
	defer channel.Disconnect()

	conv, err := msgSvc.CreateConversation(ctx, userID, partnerID)
	if err != nil {
		return fmt.Errorf("opening conversation: %w", err)
	}

	ctrl := session.New(conv, userID, language, channel, msgSvc,
		session.Options{
			TypingIdle:     cfg.Typing.IdleTimeout,
			TargetLanguage: partnerLanguage,
		}, nil)
	if err := ctrl.Open(ctx); err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer ctrl.Close()

	fmt.Printf("crosstalk: %s <-> %s (conversation %s)\n", userID, partnerID, conv.ID)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	backlog := ctrl.Messages()
	for _, m := range backlog {
		printMessage(m, userID)
	}

	// sendText is shared by the compose loop and the voice bridge sink.
	sendText := func(text string) {
		if _, err := ctrl.SendMessage(ctx, text); err != nil {
			errStyle.Printf("[send failed] %v\n", err)
			if lost := ctrl.TakeRestoredInput(); lost != "" {
				warnStyle.Printf("[restored] %s\n", lost)
			}
		}
	}

	bridge := voice.NewBridge(translator, sendText, voice.Options{
		AutoTranslate:  cfg.Voice.AutoTranslate,
		BaseLanguage:   cfg.Voice.BaseLanguage,
		TargetLanguage: language,
	}, nil)

	go renderLoop(ctx, ctrl, userID, partnerID, len(backlog))

	return inputLoop(ctx, ctrl, msgSvc, bridge, userID, sendText)
}

// renderLoop prints session updates as they happen: new messages,
// presence transitions, and channel degradation.
func renderLoop(ctx context.Context, ctrl *session.Controller, userID, partnerID string, rendered int) {
	var lastPresence chat.Presence

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-ctrl.Updates():
			switch u.Kind {
			case session.UpdateMessages:
				msgs := ctrl.Messages()
				for ; rendered < len(msgs); rendered++ {
					printMessage(msgs[rendered], userID)
				}
			case session.UpdatePresence:
				pres := ctrl.Presence(partnerID)
				if pres.Online != lastPresence.Online {
					if pres.Online {
						noticeStyle.Printf("[%s is online]\n", partnerID)
					} else {
						noticeStyle.Printf("[%s went offline]\n", partnerID)
					}
				}
				if pres.Typing != lastPresence.Typing && pres.Typing {
					noticeStyle.Printf("[%s is typing...]\n", partnerID)
				}
				lastPresence = pres
			case session.UpdateDegraded:
				warnStyle.Println("[connection degraded: live updates paused, sends still delivered]")
			}
		}
	}
}

// printMessage renders one message, own and partner styles differing.
// The translated body is shown when present, with the original dimmed.
func printMessage(m chat.Message, userID string) {
	style := partnerStyle
	prefix := "<"
	if m.SenderID == userID {
		style = ownStyle
		prefix = ">"
	}

	style.Printf("%s %s: %s\n", prefix, m.SenderID, m.DisplayText())
	if m.TranslatedText != "" && m.TranslatedText != m.Text {
		noticeStyle.Printf("   (%s: %s)\n", m.Language, m.Text)
	}
}

func inputLoop(ctx context.Context, ctrl *session.Controller, msgSvc api.MessageService, bridge *voice.Bridge, userID string, sendText func(string)) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else if err := scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch {
		case input == "/quit" || input == "/exit" || input == "/q":
			return nil

		case input == "/help":
			printHelp()

		case input == "/conversations":
			if err := listConversations(ctx, msgSvc, userID); err != nil {
				errStyle.Printf("[error] %v\n", err)
			}

		case strings.HasPrefix(input, "/read"):
			id := strings.TrimSpace(strings.TrimPrefix(input, "/read"))
			if id == "" {
				fmt.Println("Usage: /read <message id>")
				continue
			}
			if err := ctrl.MarkRead(ctx, id); err != nil {
				errStyle.Printf("[error] %v\n", err)
			}

		case strings.HasPrefix(input, "/say"):
			// Feed text through the voice bridge as a finalized segment.
			text := strings.TrimSpace(strings.TrimPrefix(input, "/say"))
			if text == "" {
				fmt.Println("Usage: /say <text>")
				continue
			}
			if err := bridge.HandleSegment(ctx, voice.Segment{Text: text, Final: true}); err != nil {
				warnStyle.Printf("[voice] %v\n", err)
			}

		default:
			ctrl.NoteActivity()
			sendText(input)
		}
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /conversations   List your conversations")
	fmt.Println("  /read <id>       Mark a partner message as read")
	fmt.Println("  /say <text>      Send text through the voice bridge")
	fmt.Println("  /help            Show this help")
	fmt.Println("  /quit            Exit")
	fmt.Println("Anything else is sent as a message.")
}

// listConversations fetches and displays the user's conversations.
func listConversations(ctx context.Context, msgSvc api.MessageService, userID string) error {
	convs, err := msgSvc.GetConversations(ctx, userID)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("No conversations yet")
		return nil
	}
	fmt.Println("Conversations:")
	for _, c := range convs {
		partner := c.Partner(userID)
		fmt.Printf("  %s: with %s (last message %s)\n",
			c.ID, partner, c.LastMessageAt.Format("2006-01-02 15:04"))
	}
	return nil
}
