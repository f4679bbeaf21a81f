package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Game holds the timing and size of a quiz session.
type Game struct {
	TotalRounds     int    `yaml:"total_rounds"`
	DisplaySeconds  int    `yaml:"display_seconds"`
	ResponseSeconds int    `yaml:"response_seconds"`
	RaceWindowMS    int    `yaml:"race_window_ms"`
	Difficulty      string `yaml:"difficulty"`
}

// DefaultGame returns the standard session settings.
func DefaultGame() Game {
	return Game{
		TotalRounds:     5,
		DisplaySeconds:  10,
		ResponseSeconds: 90,
		RaceWindowMS:    200,
		Difficulty:      "medium",
	}
}

// LoadGame reads game settings from path on top of the defaults. An empty
// path returns the defaults.
func LoadGame(path string) (Game, error) {
	game := DefaultGame()
	if path == "" {
		return game, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Game{}, fmt.Errorf("failed to read game config: %w", err)
	}
	if err := yaml.Unmarshal(data, &game); err != nil {
		return Game{}, fmt.Errorf("failed to parse game config: %w", err)
	}
	if err := game.Validate(); err != nil {
		return Game{}, err
	}
	return game, nil
}

// Validate checks the settings are playable.
func (g Game) Validate() error {
	switch {
	case g.TotalRounds < 1 || g.TotalRounds > 20:
		return fmt.Errorf("total_rounds must be between 1 and 20, got %d", g.TotalRounds)
	case g.DisplaySeconds < 1:
		return fmt.Errorf("display_seconds must be positive, got %d", g.DisplaySeconds)
	case g.ResponseSeconds < 1:
		return fmt.Errorf("response_seconds must be positive, got %d", g.ResponseSeconds)
	case g.RaceWindowMS < 1:
		return fmt.Errorf("race_window_ms must be positive, got %d", g.RaceWindowMS)
	case g.Difficulty != "medium" && g.Difficulty != "hard":
		return fmt.Errorf("difficulty must be medium or hard, got %q", g.Difficulty)
	}
	return nil
}

// RaceWindow returns the race collection window as a duration.
func (g Game) RaceWindow() time.Duration {
	return time.Duration(g.RaceWindowMS) * time.Millisecond
}
