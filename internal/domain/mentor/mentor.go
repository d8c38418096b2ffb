// Package mentor is the catalogue of historical mentors a user can follow.
package mentor

import (
	"github.com/imperium-ai/imperium/internal/domain/shared"
)

// ID identifies a mentor.
type ID string

// Known mentors.
const (
	Machiavelli ID = "machiavelli"
	Napoleon    ID = "napoleon"
	Aurelius    ID = "aurelius"
)

// Default is assigned when a user does not pick a mentor.
const Default = Machiavelli

// Mentor describes one mentor persona.
type Mentor struct {
	ID          ID
	Name        string
	Title       string
	Description string
	Quote       string
	Style       string
	Tone        string
	Focus       string
	Icon        string
	// ShortName is used in headings such as "Napoleon's Perspective".
	ShortName string
}

var catalogue = []Mentor{
	{
		ID:          Machiavelli,
		Name:        "Niccolò Machiavelli",
		ShortName:   "Machiavelli",
		Title:       "The Pragmatist",
		Description: "Master of realpolitik and strategic cunning. Teaches that the ends justify the means and power must be understood without moral illusions.",
		Quote:       "It is better to be feared than loved, if you cannot be both.",
		Style:       "Direct, pragmatic, and unflinching in examining power dynamics",
		Tone:        "Sharp, analytical, ruthlessly honest",
		Focus:       "Strategic manipulation, maintaining power, understanding human nature",
		Icon:        "⚔️",
	},
	{
		ID:          Napoleon,
		Name:        "Napoleon Bonaparte",
		ShortName:   "Napoleon",
		Title:       "The Commander",
		Description: "Military genius and empire builder. Emphasizes decisive action, bold strategy, and the importance of seizing opportunity.",
		Quote:       "Impossible is a word to be found only in the dictionary of fools.",
		Style:       "Bold, action-oriented, emphasizing execution and momentum",
		Tone:        "Commanding, confident, inspiring",
		Focus:       "Leadership, strategic execution, seizing opportunities",
		Icon:        "⚡",
	},
	{
		ID:          Aurelius,
		Name:        "Marcus Aurelius",
		ShortName:   "Marcus Aurelius",
		Title:       "The Philosopher",
		Description: "Stoic emperor and philosopher. Teaches self-mastery, virtue, and maintaining inner strength regardless of external circumstances.",
		Quote:       "You have power over your mind, not outside events. Realize this, and you will find strength.",
		Style:       "Reflective, principled, focused on character development",
		Tone:        "Calm, wise, introspective",
		Focus:       "Self-discipline, virtue, inner strength, emotional regulation",
		Icon:        "🏛️",
	},
}

// All returns every mentor in council seating order.
func All() []Mentor {
	cp := make([]Mentor, len(catalogue))
	copy(cp, catalogue)
	return cp
}

// Lookup returns the mentor with the given id.
func Lookup(id ID) (Mentor, error) {
	for _, m := range catalogue {
		if m.ID == id {
			return m, nil
		}
	}
	return Mentor{}, shared.Errorf("mentor", "Lookup", shared.ErrNotFound, "unknown mentor %q", id)
}

// Resolve is Lookup that falls back to the default mentor for unknown or
// empty ids.
func Resolve(id ID) Mentor {
	if m, err := Lookup(id); err == nil {
		return m
	}
	m, _ := Lookup(Default)
	return m
}

// IsValid reports whether id names a known mentor.
func (id ID) IsValid() bool {
	_, err := Lookup(id)
	return err == nil
}
