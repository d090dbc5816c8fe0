package main

import (
	"context"
	"log"
)

type Profile struct {
	DisplayName  string   `json:"display_name"`
	Avatar       string   `json:"avatar"`
	Season       string   `json:"season"`
	Achievements string   `json:"achievements"`
	Badges       []string `json:"badges"`
}

func fallbackProfile(user User) Profile {
	return Profile{
		DisplayName:  user.DisplayName,
		Avatar:       defaultAvatar,
		Season:       currentSeasonName,
		Achievements: defaultAchievements,
		Badges:       append([]string(nil), defaultBadges...),
	}
}

// resolveProfile asks the source for a profile and fills whatever it leaves
// blank from the fallback. Lookup failures are logged and never surfaced.
func resolveProfile(ctx context.Context, source ProfileSource, user User) Profile {
	fallback := fallbackProfile(user)
	if source == nil {
		return fallback
	}
	profile, err := source.FetchProfile(ctx, user)
	if err != nil {
		log.Println("Profile: fetch failed for", user.ID+":", err)
		return fallback
	}
	if profile == nil {
		return fallback
	}

	out := *profile
	if out.DisplayName == "" {
		out.DisplayName = fallback.DisplayName
	}
	if out.Avatar == "" {
		out.Avatar = storedProfileAvatar
	}
	if out.Season == "" {
		out.Season = fallback.Season
	}
	if out.Achievements == "" {
		out.Achievements = fallback.Achievements
	}
	if out.Badges == nil {
		out.Badges = fallback.Badges
	}
	return out
}
