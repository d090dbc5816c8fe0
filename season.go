package main

const (
	currentSeasonName   = "Winter 2025"
	defaultAchievements = "0/30"
	defaultAvatar       = "⛄"
	storedProfileAvatar = "❄"

	// carolsEventMult is the event multiplier while the carols event is on.
	carolsEventMult = 1.5
)

const (
	SeasonalEventCarols    = "carols"
	SeasonalEventSnowstorm = "snowstorm"
)

var defaultBadges = []string{"Icy", "Rookie"}
