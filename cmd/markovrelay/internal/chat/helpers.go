package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal"
	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/corpus"
	"github.com/tinyland-inc/markovrelay/pkg/emoji"
	"github.com/tinyland-inc/markovrelay/pkg/markov"
	"github.com/tinyland-inc/markovrelay/pkg/render"
	"github.com/tinyland-inc/markovrelay/pkg/storage/sqlite"
)

// responder answers a prompt the way the gateway would, minus Discord.
type responder struct {
	filter    corpus.SentenceFilter
	keywords  corpus.KeywordProvider
	generator corpus.Generator
	renderer  corpus.Renderer
	empty     string
}

func (r *responder) respond(ctx context.Context, prompt string) (string, error) {
	kw, err := r.keywords.Find(ctx, prompt)
	if err != nil {
		return "", err
	}
	text, err := r.generator.Generate(ctx, r.filter, kw)
	if err != nil {
		return "", err
	}
	out := r.renderer.Render(text, emoji.Namespaces{})
	if strings.TrimSpace(out) == "" {
		return r.empty, nil
	}
	return out, nil
}

func newResponder(cfg *config.Config, store *sqlite.Store, scope string) (*responder, error) {
	r := &responder{
		keywords: markov.NewKeywords(store.WordStats(), cfg.Markov.KeywordMinLen),
		generator: markov.NewGenerator(store.Sentences(), markov.Options{
			MaxWords:   cfg.Markov.MaxWords,
			SampleSize: cfg.Markov.SampleSize,
		}),
		renderer: render.New(),
		empty:    cfg.Bot.EmptyReply,
	}
	if scope != "" {
		addr, err := address.Parse(scope)
		if err != nil {
			return nil, err
		}
		r.filter.Include = []address.Address{addr}
	}
	return r, nil
}

func chatCmd(ctx context.Context, message, scope string, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadConfig(internal.GetConfigPath())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	internal.ApplyLogging(cfg, debug)

	store, err := sqlite.Open(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("error opening corpus: %w", err)
	}
	defer store.Close()

	r, err := newResponder(cfg, store, scope)
	if err != nil {
		return fmt.Errorf("invalid scope: %w", err)
	}

	if message != "" {
		response, err := r.respond(ctx, message)
		if err != nil {
			return fmt.Errorf("error generating reply: %w", err)
		}
		fmt.Printf("\n%s %s\n", internal.Logo, response)
		return nil
	}

	fmt.Printf("%s Interactive mode as %s (Ctrl+C to exit)\n\n", internal.Logo, cfg.Bot.BotName)
	interactiveMode(ctx, r)
	return nil
}

func interactiveMode(ctx context.Context, r *responder) {
	prompt := fmt.Sprintf("%s You: ", internal.Logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".markovrelay_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, r, os.Stdin, os.Stdout)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleLine(ctx, r, line, os.Stdout) {
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, r *responder, in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s You: ", internal.Logo)
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}
		if !handleLine(ctx, r, line, out) {
			return
		}
	}
}

// handleLine answers one line and reports whether to keep reading.
func handleLine(ctx context.Context, r *responder, line string, out io.Writer) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Fprintln(out, "Goodbye!")
		return false
	}

	response, err := r.respond(ctx, input)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return true
	}
	fmt.Fprintf(out, "\n%s %s\n\n", internal.Logo, response)
	return true
}
