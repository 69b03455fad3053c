package domain

import "math/rand/v2"

// Mood conditions unprompted content generation.
type Mood string

const (
	MoodSad        Mood = "sad"
	MoodHappy      Mood = "happy"
	MoodFunny      Mood = "funny"
	MoodReflective Mood = "reflective"
	MoodCynical    Mood = "cynical"
	MoodPoetic     Mood = "poetic"
	MoodNumb       Mood = "numb"
)

// DefaultMoods is the fixed mood set used when none is configured.
var DefaultMoods = []Mood{MoodSad, MoodHappy, MoodFunny, MoodReflective, MoodCynical, MoodPoetic, MoodNumb}

// PickMood returns a uniformly random mood from moods, falling back to
// DefaultMoods when moods is empty.
func PickMood(r *rand.Rand, moods []Mood) Mood {
	if len(moods) == 0 {
		moods = DefaultMoods
	}
	if r == nil {
		return moods[rand.IntN(len(moods))]
	}
	return moods[r.IntN(len(moods))]
}
