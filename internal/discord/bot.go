// Package discord is the chat-platform glue: bot login, the !music
// control-link command, user lookups for attribution, voice channel
// resolution and best-effort playback announcements.
package discord

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/config"
	"github.com/Pooh303/sec3music-bot/internal/music"
	"github.com/Pooh303/sec3music-bot/internal/session"
)

const commandPrefix = "!"

// Bot owns the Discord session and the message-command surface.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	sessions *session.Registry

	// Last control-link DM per user, so a fresh link replaces the old one.
	mu     sync.Mutex
	lastDM map[string]string
}

func NewBot(cfg *config.Config, sessions *session.Registry) *Bot {
	return &Bot{
		cfg:      cfg,
		sessions: sessions,
		lastDM:   make(map[string]string),
	}
}

// Connect creates and opens the Discord session. A login failure is fatal
// to the process by design; there is no degraded mode without the bot
// identity.
func (b *Bot) Connect() error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	if b.dg == nil {
		return nil
	}
	return b.dg.Close()
}

// Session exposes the underlying connection for voice join.
func (b *Bot) Session() *discordgo.Session { return b.dg }

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", r.User.Username).Msg("bot logged in")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot || m.GuildID == "" {
		return
	}
	if m.Content != commandPrefix+"music" {
		return
	}
	b.sendControlLink(s, m)
}

// sendControlLink issues a fresh session token and DMs the personal
// control link, replacing the user's previous link message first.
func (b *Bot) sendControlLink(s *discordgo.Session, m *discordgo.MessageCreate) {
	dm, err := s.UserChannelCreate(m.Author.ID)
	if err != nil {
		log.Warn().Err(err).Str("user", m.Author.Username).Msg("could not open DM channel")
		b.reply(s, m, fmt.Sprintf("%s sorry, I couldn't DM you. Check your privacy settings.", m.Author.Mention()))
		return
	}

	b.revokePreviousLink(s, dm.ID, m.Author.ID, m.Author.Username)

	token := b.sessions.Issue(music.UserRef{
		ID:     m.Author.ID,
		Name:   m.Author.Username,
		Avatar: m.Author.AvatarURL("64"),
	})
	link := fmt.Sprintf("%s?session_token=%s", b.cfg.BaseURL, token)
	content := fmt.Sprintf(
		"Here's your personal music remote link:\n||%s||\n\n👉 The link is valid for %.0f hours. Run the command again for a new one. 😗",
		link, b.sessions.TTL().Hours())

	sent, err := s.ChannelMessageSend(dm.ID, content)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Message != nil &&
			restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
			b.reply(s, m, fmt.Sprintf(
				"%s looks like your DMs are closed. Allow DMs from server members and try again. 😥",
				m.Author.Mention()))
			return
		}
		log.Error().Err(err).Str("user", m.Author.Username).Msg("failed to send control link DM")
		b.reply(s, m, fmt.Sprintf("%s oops, something went wrong. Try again in a moment. 😅", m.Author.Mention()))
		return
	}

	b.mu.Lock()
	b.lastDM[m.Author.ID] = sent.ID
	b.mu.Unlock()

	b.reply(s, m, fmt.Sprintf("%s I sent your music remote link in a DM. 😉", m.Author.Mention()))
}

// revokePreviousLink best-effort deletes the user's previous link DM.
// Failures are logged and ignored; the old token expires on its own.
func (b *Bot) revokePreviousLink(s *discordgo.Session, dmChannelID, userID, userName string) {
	b.mu.Lock()
	lastID, ok := b.lastDM[userID]
	delete(b.lastDM, userID)
	b.mu.Unlock()
	if !ok {
		return
	}
	if err := s.ChannelMessageDelete(dmChannelID, lastID); err != nil {
		log.Warn().Err(err).Str("user", userName).Msg("could not delete previous link DM")
		return
	}
	log.Info().Str("user", userName).Msg("deleted previous link DM")
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		log.Warn().Err(err).Msg("failed to send reply")
	}
}
