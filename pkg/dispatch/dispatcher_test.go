package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/bus"
	"github.com/tinyland-inc/markovrelay/pkg/commands"
	"github.com/tinyland-inc/markovrelay/pkg/config"
	"github.com/tinyland-inc/markovrelay/pkg/corpus/corpustest"
	"github.com/tinyland-inc/markovrelay/pkg/emoji"
	"github.com/tinyland-inc/markovrelay/pkg/gate"
	"github.com/tinyland-inc/markovrelay/pkg/moderation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const botID = "999"

type reactionCall struct {
	channelID, messageID, emoji string
}

type fakeTransport struct {
	mu        sync.Mutex
	channels  map[string]*discordgo.Channel
	messages  map[string]*discordgo.Message
	users     map[string]*discordgo.User
	sent      []string
	replies   []string
	reactions []reactionCall
	typing    int
	stopped   int
	sendErr   error
	sendHook  func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		channels: map[string]*discordgo.Channel{
			"10": {ID: "10", GuildID: "1", Type: discordgo.ChannelTypeGuildText},
		},
		messages: map[string]*discordgo.Message{},
		users:    map[string]*discordgo.User{},
	}
}

func (f *fakeTransport) BotUserID() string { return botID }

func (f *fakeTransport) Channel(id string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[id]; ok {
		return ch, nil
	}
	return nil, discordgo.ErrStateNotFound
}

func (f *fakeTransport) Message(_ context.Context, _, id string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return nil, errors.New("unknown message")
}

func (f *fakeTransport) User(_ context.Context, id string) (*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("unknown user")
}

func (f *fakeTransport) Namespaces(string) emoji.Namespaces { return emoji.Namespaces{} }

func (f *fakeTransport) Send(_ context.Context, _ string, content string) error {
	if f.sendHook != nil {
		f.sendHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, content)
	return nil
}

func (f *fakeTransport) Reply(_ context.Context, _ *discordgo.Message, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, content)
	return nil
}

func (f *fakeTransport) React(_ context.Context, channelID, messageID string, e *discordgo.Emoji) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reactionCall{channelID, messageID, e.APIName()})
	return nil
}

func (f *fakeTransport) StartTyping(string) func() {
	f.mu.Lock()
	f.typing++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.stopped++
		f.mu.Unlock()
	}
}

type harness struct {
	d         *Dispatcher
	transport *fakeTransport
	store     *corpustest.Store
	generator *corpustest.Generator
	cfg       *config.Config
}

func newHarness(t *testing.T, mut func(*config.BotOptions)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	if mut != nil {
		mut(&cfg.Bot)
	}
	transport := newFakeTransport()
	store := &corpustest.Store{}
	sentences := corpustest.Sentences(store)
	builder := address.NewBuilder("", transport)
	ingestor := gate.NewIngestor(corpustest.SplitParser{}, store, sentences)
	generator := &corpustest.Generator{Text: "generated words"}

	d := New(Deps{
		Bus:       bus.NewEventBus(),
		Transport: transport,
		Config:    config.NewSnapshot(cfg),
		Builder:   builder,
		Ingestor:  ingestor,
		Protocol:  moderation.NewProtocol(ingestor, sentences, builder),
		Generator: generator,
		Keywords:  corpustest.Keywords{},
		Renderer:  corpustest.Renderer{},
		Commands:  commands.NewRouter(store, builder, transport),
	})
	return &harness{d: d, transport: transport, store: store, generator: generator, cfg: cfg}
}

func userMessage(id, author, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "10",
		GuildID:   "1",
		Content:   content,
		Author:    &discordgo.User{ID: author},
		Type:      discordgo.MessageTypeDefault,
	}
}

func TestHandleMessage_UnlistedAuthorMentionsBot(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) {
		o.BotName = "devbot"
		o.IngestOnMessage = true
		o.RestrictToIDs = config.FlexibleStringSlice{"123"}
	})

	h.d.HandleMessage(context.Background(), bus.MessageEvent{ID: "e1", Message: userMessage("1", "456", "hey DEVBOT what's up")})

	assert.Zero(t, h.store.Writes())
	assert.Equal(t, []string{"generated words"}, h.transport.sent)
	require.Equal(t, 1, h.generator.Calls())
	assert.Empty(t, h.generator.Filters[0].Include)
	assert.Equal(t, "hey", h.generator.Keywords[0])
	assert.Equal(t, 1, h.transport.typing)
	assert.Equal(t, 1, h.transport.stopped)
}

func TestHandleMessage_WordStatsOnly(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) { o.CollectWordStatsOnMessage = true })

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: userMessage("1", "7", "one. two")})

	assert.Equal(t, []string{"one", "two"}, h.store.WordStatTexts)
	assert.Empty(t, h.store.Sentences)
	assert.Empty(t, h.transport.sent)
}

func TestHandleMessage_IngestsSentences(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) { o.IngestOnMessage = true })

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: userMessage("42", "7", "one. two")})

	require.Len(t, h.store.Sentences, 2)
	assert.Equal(t, address.ForMessage(address.DefaultInstance, 1, 0, 10, 0, 42), h.store.Sentences[0].Address)
}

func TestHandleMessage_UnknownChannelKeepsWordStats(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) {
		o.IngestOnMessage = true
		o.CollectWordStatsOnMessage = true
	})
	m := userMessage("42", "7", "one. two")
	m.ChannelID = "77"

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: m})

	assert.Equal(t, []string{"one", "two"}, h.store.WordStatTexts)
	assert.Empty(t, h.store.Sentences)
}

func TestHandleMessage_SkipsBotsAndSystemMessages(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) { o.IngestOnMessage = true })

	fromBot := userMessage("1", "8", "devbot hi")
	fromBot.Author.Bot = true
	pin := userMessage("2", "7", "devbot pinned")
	pin.Type = discordgo.MessageTypeChannelPinnedMessage

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: fromBot})
	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: pin})
	h.d.HandleMessage(context.Background(), bus.MessageEvent{})

	assert.Zero(t, h.store.Writes())
	assert.Empty(t, h.transport.sent)
}

func TestHandleMessage_EmptyGenerationUsesFallback(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.Text = "   "

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: userMessage("1", "7", "devbot?")})
	assert.Equal(t, []string{h.cfg.Bot.EmptyReply}, h.transport.sent)
}

func TestHandleMessage_TypingStoppedOnGeneratorError(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.Err = errors.New("empty corpus")

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: userMessage("1", "7", "devbot?")})
	assert.Empty(t, h.transport.sent)
	assert.Equal(t, 1, h.transport.typing)
	assert.Equal(t, 1, h.transport.stopped)
}

func TestHandleMessage_ReplyToBot(t *testing.T) {
	h := newHarness(t, nil)
	m := userMessage("1", "7", "and then?")
	m.Type = discordgo.MessageTypeReply
	m.ReferencedMessage = &discordgo.Message{Author: &discordgo.User{ID: botID, Bot: true}}

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: m})
	assert.Len(t, h.transport.sent, 1)
}

func TestHandleMessage_CommandIsNotIngested(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) { o.IngestOnMessage = true })

	h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: userMessage("1", "7", "!ping devbot")})
	assert.Equal(t, []string{"pong!!"}, h.transport.replies)
	assert.Zero(t, h.store.Writes())
	assert.Empty(t, h.transport.sent)
}

func TestHandleMessage_RecoversPanics(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.sendHook = func() { panic("boom") }

	assert.NotPanics(t, func() {
		h.d.HandleMessage(context.Background(), bus.MessageEvent{Message: userMessage("1", "7", "devbot")})
	})
}

func reactionEvent(reactor, glyph string) bus.ReactionEvent {
	return bus.ReactionEvent{
		ID: "r",
		Reaction: &discordgo.MessageReaction{
			UserID:    reactor,
			MessageID: "42",
			ChannelID: "10",
			GuildID:   "1",
			Emoji:     discordgo.Emoji{Name: glyph},
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: reactor}},
	}
}

func TestHandleReaction_UnauthorizedWriteGetsFailEmoji(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) { o.RestrictToIDs = config.FlexibleStringSlice{"7"} })
	h.transport.messages["42"] = userMessage("42", "7", "some text")

	h.d.HandleReaction(context.Background(), reactionEvent("666", h.cfg.Bot.WriteEmojis[0]))

	assert.Equal(t, []reactionCall{{"10", "42", h.cfg.Bot.FailEmoji}}, h.transport.reactions)
	assert.Zero(t, h.store.Writes())
}

func TestHandleReaction_WriteThenDelete(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.messages["42"] = userMessage("42", "7", "first. second")

	h.d.HandleReaction(context.Background(), reactionEvent("5", h.cfg.Bot.WriteEmojis[0]))
	require.Len(t, h.store.Sentences, 2)

	h.d.HandleReaction(context.Background(), reactionEvent("5", h.cfg.Bot.DeleteEmojis[0]))
	assert.Empty(t, h.store.Sentences)
	require.Len(t, h.store.Deletes, 1)
	assert.Equal(t, []address.Address{address.ForMessage(address.DefaultInstance, 1, 0, 10, 0, 42)}, h.store.Deletes[0].Include)

	assert.Equal(t, []reactionCall{
		{"10", "42", h.cfg.Bot.WriteEmojis[0]},
		{"10", "42", h.cfg.Bot.DeleteEmojis[0]},
	}, h.transport.reactions)
}

func TestHandleReaction_Discarded(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.messages["42"] = userMessage("42", "7", "text")

	// the bot's own feedback reaction
	h.d.HandleReaction(context.Background(), reactionEvent(botID, h.cfg.Bot.WriteEmojis[0]))

	// another bot
	ev := reactionEvent("8", h.cfg.Bot.WriteEmojis[0])
	ev.Member.User.Bot = true
	h.d.HandleReaction(context.Background(), ev)

	// DM reaction from an unknown user
	ev = reactionEvent("9", h.cfg.Bot.WriteEmojis[0])
	ev.Member = nil
	h.d.HandleReaction(context.Background(), ev)

	// message that cannot be fetched
	ev = reactionEvent("5", h.cfg.Bot.WriteEmojis[0])
	ev.Reaction.MessageID = "404"
	h.d.HandleReaction(context.Background(), ev)

	assert.Empty(t, h.transport.reactions)
	assert.Zero(t, h.store.Writes())
}

func TestHandleReaction_UnresolvableEmojiAddsNothing(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) { o.WriteEmojiNames = []string{"ghost"} })
	h.transport.messages["42"] = userMessage("42", "7", "text")

	h.d.HandleReaction(context.Background(), reactionEvent("5", h.cfg.Bot.WriteEmojis[0]))
	assert.Empty(t, h.transport.reactions)
	assert.Zero(t, h.store.Writes())
}

func TestDispatcher_StartStopDrains(t *testing.T) {
	h := newHarness(t, func(o *config.BotOptions) { o.IngestOnMessage = true })
	h.transport.messages["42"] = userMessage("42", "7", "first. second")
	ctx := context.Background()

	require.NoError(t, h.d.Start(ctx))
	assert.Error(t, h.d.Start(ctx))

	for i := 0; i < 20; i++ {
		require.NoError(t, h.d.Bus.PublishMessage(ctx, bus.MessageEvent{Message: userMessage("1", "7", "a. b")}))
	}
	require.NoError(t, h.d.Bus.PublishReaction(ctx, reactionEvent("5", h.cfg.Bot.WriteEmojis[0])))

	require.Eventually(t, func() bool {
		h.transport.mu.Lock()
		defer h.transport.mu.Unlock()
		return len(h.transport.reactions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, h.d.Stop(stopCtx))
	assert.ErrorIs(t, h.d.Stop(stopCtx), ErrNotRunning)
	h.d.Bus.Close()
}

func TestDispatcher_StreamsAreIndependent(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.messages["42"] = userMessage("42", "7", "first")

	block := make(chan struct{})
	h.transport.sendHook = func() { <-block }
	ctx := context.Background()
	require.NoError(t, h.d.Start(ctx))

	// a reply blocked on send must not hold up reactions
	require.NoError(t, h.d.Bus.PublishMessage(ctx, bus.MessageEvent{Message: userMessage("1", "7", "devbot")}))
	require.NoError(t, h.d.Bus.PublishReaction(ctx, reactionEvent("5", h.cfg.Bot.WriteEmojis[0])))

	require.Eventually(t, func() bool {
		h.transport.mu.Lock()
		defer h.transport.mu.Unlock()
		return len(h.transport.reactions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(block)
	require.NoError(t, h.d.Stop(context.Background()))
	h.d.Bus.Close()
}

func TestDispatcher_StopDeliversReplyBlockedInGenerate(t *testing.T) {
	h := newHarness(t, nil)
	h.transport.messages["42"] = userMessage("42", "7", "first")
	release := make(chan struct{})
	h.generator.Block = release
	ctx := context.Background()
	require.NoError(t, h.d.Start(ctx))

	require.NoError(t, h.d.Bus.PublishMessage(ctx, bus.MessageEvent{Message: userMessage("1", "7", "devbot")}))
	require.Eventually(t, func() bool { return h.generator.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- h.d.Stop(context.Background()) }()

	select {
	case err := <-stopped:
		t.Fatalf("Stop returned before the handler finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)

	h.transport.mu.Lock()
	assert.Equal(t, []string{"generated words"}, h.transport.sent)
	h.transport.mu.Unlock()
	h.d.Bus.Close()
}
