package domain

import "math"

// BadgeRule binds a badge and title to a minimum level.
type BadgeRule struct {
	MinLevel int    `yaml:"min_level"`
	Badge    string `yaml:"badge"`
	Title    string `yaml:"title"`
}

// LevelCurve derives levels from cumulative XP. The threshold for level L is
// int(BaseXP * L^Exponent); level 1 starts at 0. The curve is a pure,
// monotonic step function: same total XP always yields the same level.
type LevelCurve struct {
	BaseXP   int         `yaml:"base_xp"`
	Exponent float64     `yaml:"exponent"`
	MaxLevel int         `yaml:"max_level"`
	Badges   []BadgeRule `yaml:"badges"`
}

// DefaultLevelCurve returns the stock curve: 100 * level^1.5, capped at 100.
func DefaultLevelCurve() LevelCurve {
	return LevelCurve{
		BaseXP:   100,
		Exponent: 1.5,
		MaxLevel: 100,
		Badges: []BadgeRule{
			{MinLevel: 1, Badge: "🌱", Title: "Beginner"},
			{MinLevel: 5, Badge: "🔥", Title: "Rising"},
			{MinLevel: 10, Badge: "🎯", Title: "Focused"},
			{MinLevel: 20, Badge: "⭐", Title: "Star"},
			{MinLevel: 30, Badge: "🏆", Title: "Champion"},
			{MinLevel: 40, Badge: "💎", Title: "Diamond"},
			{MinLevel: 50, Badge: "👑", Title: "Master"},
		},
	}
}

// XPForLevel returns the cumulative XP threshold at which level begins.
func (c LevelCurve) XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return int(float64(c.BaseXP) * math.Pow(float64(level), c.Exponent))
}

// LevelFor maps total XP to a level.
func (c LevelCurve) LevelFor(totalXP int) int {
	if totalXP <= 0 {
		return 1
	}
	level := 1
	for level < c.MaxLevel && totalXP >= c.XPForLevel(level+1) {
		level++
	}
	return level
}

// Badge returns the badge and title for a level.
func (c LevelCurve) Badge(level int) (string, string) {
	badge, title := "", ""
	for _, rule := range c.Badges {
		if level >= rule.MinLevel {
			badge, title = rule.Badge, rule.Title
		}
	}
	return badge, title
}

// XPToNext returns how much XP is missing until the next level, 0 at max.
func (c LevelCurve) XPToNext(totalXP int) int {
	level := c.LevelFor(totalXP)
	if level >= c.MaxLevel {
		return 0
	}
	return c.XPForLevel(level+1) - totalXP
}

// Info assembles the full client-facing level state for a total XP value.
func (c LevelCurve) Info(totalXP int) LevelInfo {
	level := c.LevelFor(totalXP)
	badge, title := c.Badge(level)
	current := c.XPForLevel(level)

	info := LevelInfo{
		Level:      level,
		Badge:      badge,
		Title:      title,
		TotalXP:    totalXP,
		IsMaxLevel: level >= c.MaxLevel,
	}
	if info.IsMaxLevel {
		info.CurrentLevelXP = current
		info.NextLevelXP = totalXP
		info.XPInLevel = totalXP - current
		info.Progress = 100
		return info
	}

	next := c.XPForLevel(level + 1)
	info.CurrentLevelXP = current
	info.NextLevelXP = next
	info.XPInLevel = totalXP - current
	info.XPNeeded = next - current
	info.XPToNext = next - totalXP
	if info.XPNeeded > 0 {
		info.Progress = math.Round(float64(info.XPInLevel)/float64(info.XPNeeded)*1000) / 10
	} else {
		info.Progress = 100
	}
	return info
}
