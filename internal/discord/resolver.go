package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/music"
)

// ResolveVoiceChannel resolves the configured voice channel to its guild,
// checking that it really is a joinable voice channel. This is the single
// lookup path every playback command funnels through.
func (b *Bot) ResolveVoiceChannel(channelID string) (string, error) {
	ch, err := b.dg.State.Channel(channelID)
	if err != nil {
		ch, err = b.dg.Channel(channelID)
	}
	if err != nil || ch.Type != discordgo.ChannelTypeGuildVoice {
		return "", music.ErrChannelNotFound
	}

	perms, err := b.dg.State.UserChannelPermissions(b.dg.State.User.ID, channelID)
	if err == nil && perms&discordgo.PermissionVoiceConnect == 0 {
		return "", music.ErrChannelNotJoinable
	}
	return ch.GuildID, nil
}

// FetchUser looks up attribution details for a user id. Lookup failures
// degrade to a placeholder so a play request is never rejected over
// missing attribution.
func (b *Bot) FetchUser(userID string) music.UserRef {
	u, err := b.dg.User(userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("could not fetch user details")
		return music.UserRef{ID: userID, Name: "Unknown User"}
	}
	return music.UserRef{ID: u.ID, Name: u.Username, Avatar: u.AvatarURL("32")}
}

// Announce posts a playback notice to the guild's text channel. Delivery
// failures are logged and never propagated to the triggering request.
func (b *Bot) Announce(guildID, message string) {
	channelID := b.announceChannel(guildID)
	if channelID == "" {
		log.Warn().Str("guild", guildID).Msg("no suitable text channel for playback notices")
		return
	}
	if _, err := b.dg.ChannelMessageSend(channelID, message); err != nil {
		log.Warn().Err(err).Str("guild", guildID).Msg("failed to send playback notice")
	}
}

// announceChannel picks the configured notice channel, falling back to the
// guild system channel and then any text channel the bot can write to.
func (b *Bot) announceChannel(guildID string) string {
	if b.cfg.TextChannelID != "" {
		return b.cfg.TextChannelID
	}

	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return ""
	}
	if guild.SystemChannelID != "" && b.canSend(guild.SystemChannelID) {
		return guild.SystemChannelID
	}
	for _, ch := range guild.Channels {
		if ch.Type == discordgo.ChannelTypeGuildText && b.canSend(ch.ID) {
			return ch.ID
		}
	}
	return ""
}

func (b *Bot) canSend(channelID string) bool {
	perms, err := b.dg.State.UserChannelPermissions(b.dg.State.User.ID, channelID)
	return err == nil && perms&discordgo.PermissionSendMessages != 0
}
