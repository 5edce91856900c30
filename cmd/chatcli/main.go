// Command chatcli is a terminal front end for the chat relay. It keeps the
// same conversation state as the browser page and talks to the relay over
// HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatrelay/client"
	"chatrelay/conversation"
	"chatrelay/message"
	"chatrelay/models"
	"chatrelay/stream"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("error executing root command: %s", err)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("chatcli")
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("history", filepath.Join(os.TempDir(), "chatcli_history"))
	v.SetDefault("input_device", "")
	v.SetDefault("model", "")
	v.SetDefault("search", false)
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:          "chatcli",
		Short:        "Chat with the relay from a terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
			defer stop()
			return run(ctx, options{
				server:      v.GetString("server"),
				historyFile: v.GetString("history"),
				inputDevice: v.GetString("input_device"),
				model:       v.GetString("model"),
				search:      v.GetBool("search"),
			})
		},
	}

	flags := cmd.Flags()
	flags.String("server", "http://localhost:8080", "base URL of the chat relay")
	flags.String("history", "", "file holding line editing history")
	flags.String("input-device", "", "ffmpeg input device for /record")
	flags.String("model", "", "initial model id (defaults to the first in the catalogue)")
	flags.Bool("search", false, "start with web search on (OpenAI models only)")
	_ = v.BindPFlag("server", flags.Lookup("server"))
	_ = v.BindPFlag("history", flags.Lookup("history"))
	_ = v.BindPFlag("input_device", flags.Lookup("input-device"))
	_ = v.BindPFlag("model", flags.Lookup("model"))
	_ = v.BindPFlag("search", flags.Lookup("search"))

	return cmd
}

// session is one interactive run
type session struct {
	client    *client.Client
	catalogue *models.ModelRegistry
	state     conversation.State
	recorder  *conversation.Recorder

	line        *liner.State
	historyFile string
}

type options struct {
	server      string
	historyFile string
	inputDevice string
	model       string
	search      bool
}

func run(ctx context.Context, opts options) error {
	c := client.New(opts.server)
	defer c.Close()

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	catalogue, err := c.Catalogue(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load models from %s: %w", opts.server, err)
	}

	state := conversation.New(catalogue)
	if opts.model != "" {
		if _, ok := catalogue.Get(opts.model); !ok {
			return fmt.Errorf("unknown model %q", opts.model)
		}
		state = state.SelectModel(catalogue, opts.model)
	}
	if opts.search {
		state = state.ToggleWebSearch()
	}

	s := &session{
		client:      c,
		catalogue:   catalogue,
		state:       state,
		recorder:    conversation.NewRecorder(newFFmpegMicrophone(opts.inputDevice)),
		line:        liner.NewLiner(),
		historyFile: opts.historyFile,
	}
	s.line.SetCtrlCAborts(true)
	s.loadHistory()
	defer s.close()

	fmt.Printf("Connected to %s. Type /help for commands.\n", opts.server)
	s.printSuggestions()

	for {
		input, err := s.line.PromptWithSuggestion(s.prompt(), s.state.Input, -1)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) && s.state.Recording {
				_ = s.recorder.Abort()
				s.state.Recording = false
				fmt.Println("Recording discarded")
				continue
			}
			fmt.Println()
			return nil
		}
		if strings.TrimSpace(input) != "" {
			s.line.AppendHistory(input)
		}

		if strings.HasPrefix(strings.TrimSpace(input), "/") {
			s.state.Input = ""
			quit, err := s.command(ctx, strings.TrimSpace(input))
			if err != nil {
				fmt.Fprintf(os.Stderr, "[Error] %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if s.state, err = s.state.SetInput(input); err != nil {
			fmt.Fprintf(os.Stderr, "[Error] %v\n", err)
			continue
		}
		next, msg, ok := s.state.Submit()
		if !ok {
			continue
		}
		s.state = next
		s.send(ctx, msg)
	}
}

func (s *session) prompt() string {
	var flags []string
	if s.state.EffectiveWebSearch() {
		flags = append(flags, "search")
	}
	if s.state.Recording {
		flags = append(flags, "rec")
	}
	if len(flags) == 0 {
		return fmt.Sprintf("%s> ", s.state.ModelID)
	}
	return fmt.Sprintf("%s [%s]> ", s.state.ModelID, strings.Join(flags, ","))
}

// command runs a slash command. quit is true for /quit.
func (s *session) command(ctx context.Context, input string) (quit bool, err error) {
	fields := strings.Fields(input)
	arg := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println(`/models            list models
/model <id>        select a model
/search            toggle web search (OpenAI only)
/attach <path>     send a file
/record            start or stop dictation
/suggest [n]       list or send a suggested prompt
/quit              leave`)

	case "/models":
		for _, m := range s.catalogue.List() {
			marker := " "
			if m.ID == s.state.ModelID {
				marker = "*"
			}
			fmt.Printf("%s %-28s %-24s %s\n", marker, m.ID, m.Name, m.Provider)
		}

	case "/model":
		if _, ok := s.catalogue.Get(arg); !ok {
			return false, fmt.Errorf("unknown model %q", arg)
		}
		s.state = s.state.SelectModel(s.catalogue, arg)
		fmt.Printf("Using %s (%s)\n", s.state.ModelID, s.state.Provider)

	case "/search":
		if !s.state.Provider.SupportsWebSearch() {
			return false, fmt.Errorf("web search is not available for %s", s.state.Provider)
		}
		s.state = s.state.ToggleWebSearch()
		fmt.Printf("Web search %s\n", onOff(s.state.WebSearch))

	case "/attach":
		if arg == "" {
			return false, errors.New("usage: /attach <path>")
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		next, msg := s.state.AttachFile(filepath.Base(arg), detectMediaType(arg, data), data)
		s.state = next
		s.send(ctx, msg)

	case "/record":
		return false, s.toggleDictation(ctx)

	case "/suggest":
		if arg == "" {
			s.printSuggestions()
			return false, nil
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(conversation.Suggestions) {
			return false, fmt.Errorf("pick a suggestion between 1 and %d", len(conversation.Suggestions))
		}
		next, msg := s.state.Suggest(conversation.Suggestions[n-1])
		s.state = next
		s.send(ctx, msg)

	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func (s *session) toggleDictation(ctx context.Context) error {
	if !s.state.Recording {
		next, err := conversation.StartDictation(ctx, s.state, s.recorder)
		if err != nil {
			return err
		}
		s.state = next
		fmt.Println("Recording... type /record again to stop")
		return nil
	}

	tctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()
	next, err := conversation.FinishDictation(tctx, s.state, s.recorder, s.client, func(conversation.State) {
		fmt.Println("Transcribing...")
	})
	s.state = next
	if err != nil {
		return err
	}
	if s.state.Input == "" {
		fmt.Println("No speech recognized")
	}
	return nil
}

// send relays the conversation and prints the reply as it streams. Ctrl+C
// cancels the turn.
func (s *session) send(parent context.Context, msg message.Message) {
	if msg.Role == message.RoleUser && len(msg.Parts) > 0 && msg.Parts[0].Type == message.PartFile {
		fmt.Printf("[attached %s]\n", msg.Parts[0].Filename)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	for chunk, err := range s.client.Chat(ctx, s.state.Messages) {
		if err != nil {
			s.state = s.state.Fail(err)
			fmt.Println()
			fmt.Fprintf(os.Stderr, "[Error] %s\n", interruptedText(err))
			return
		}
		s.state = s.state.Apply(chunk)
		printChunk(chunk)
	}
	s.state = s.state.Finish()
	fmt.Println()

	if s.state.Status == conversation.StatusError {
		fmt.Fprintf(os.Stderr, "[Error] %s\n", s.state.Err)
		return
	}

	views := conversation.Render(s.state)
	if len(views) == 0 {
		return
	}
	if sources := views[len(views)-1].Sources; len(sources) > 0 {
		fmt.Printf("Sources (%d):\n", len(sources))
		for i, src := range sources {
			fmt.Printf("  %d. %s\n     %s\n", i+1, src.Title, src.Href)
		}
	}
}

func printChunk(c stream.Chunk) {
	switch c.Type {
	case stream.ChunkReasoningStart:
		fmt.Print("\x1b[2m[reasoning] ")
	case stream.ChunkReasoningDelta:
		fmt.Print(c.Delta)
	case stream.ChunkReasoningEnd:
		fmt.Print("\x1b[0m\n")
	case stream.ChunkTextDelta:
		fmt.Print(c.Delta)
	}
}

func interruptedText(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, stream.ErrTruncated):
		return "Connection interrupted"
	}
	return err.Error()
}

func (s *session) printSuggestions() {
	fmt.Println("Try one of these with /suggest <n>:")
	for i, text := range conversation.Suggestions {
		fmt.Printf("  %d. %s\n", i+1, text)
	}
}

func (s *session) loadHistory() {
	if f, err := os.Open(s.historyFile); err == nil {
		_, _ = s.line.ReadHistory(f)
		f.Close()
	}
}

func (s *session) close() {
	if s.state.Recording {
		_ = s.recorder.Abort()
	}
	if f, err := os.OpenFile(s.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		_, _ = s.line.WriteHistory(f)
		f.Close()
	}
	s.line.Close()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
