package bot

import (
	"github.com/bwmarrin/discordgo"
)

// guildRoles adapts the session to the reaction-role and colour-cycle collaborators.
type guildRoles struct {
	session *discordgo.Session
}

func (g *guildRoles) HasRole(guildID, roleID string) bool {
	if role, err := g.session.State.Role(guildID, roleID); err == nil && role != nil {
		return true
	}
	roles, err := g.session.GuildRoles(guildID)
	if err != nil {
		return false
	}
	for _, role := range roles {
		if role.ID == roleID {
			return true
		}
	}
	return false
}

func (g *guildRoles) HasMember(guildID, userID string) bool {
	if member, err := g.session.State.Member(guildID, userID); err == nil && member != nil {
		return true
	}
	member, err := g.session.GuildMember(guildID, userID)
	return err == nil && member != nil
}

func (g *guildRoles) AddRole(guildID, userID, roleID string) error {
	return g.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (g *guildRoles) RemoveRole(guildID, userID, roleID string) error {
	return g.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (g *guildRoles) SetRoleColor(guildID, roleID string, color int) error {
	_, err := g.session.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Color: &color})
	return err
}
