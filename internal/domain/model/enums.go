package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SkillLevel is the ordinal skill scale of a golfer.
type SkillLevel int

// Skill levels in ascending order.
const (
	Beginner SkillLevel = iota + 1
	Intermediate
	Advanced
	Professional
)

var skillLevelNames = map[SkillLevel]string{
	Beginner:     "Beginner",
	Intermediate: "Intermediate",
	Advanced:     "Advanced",
	Professional: "Professional",
}

// SkillLevels lists every level from lowest to highest.
func SkillLevels() []SkillLevel {
	return []SkillLevel{Beginner, Intermediate, Advanced, Professional}
}

// String returns the display name of the level.
func (s SkillLevel) String() string {
	if name, ok := skillLevelNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SkillLevel(%d)", int(s))
}

// Valid reports whether s is one of the declared levels.
func (s SkillLevel) Valid() bool {
	_, ok := skillLevelNames[s]
	return ok
}

// ParseSkillLevel parses a level name, ignoring case and surrounding spaces.
func ParseSkillLevel(raw string) (SkillLevel, error) {
	v := strings.TrimSpace(raw)
	for level, name := range skillLevelNames {
		if strings.EqualFold(v, name) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("skill level %q: %w", raw, ErrUnknownValue)
}

// MarshalText implements encoding.TextMarshaler.
func (s SkillLevel) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("skill level %d: %w", int(s), ErrUnknownValue)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SkillLevel) UnmarshalText(text []byte) error {
	level, err := ParseSkillLevel(string(text))
	if err != nil {
		return err
	}
	*s = level
	return nil
}

// BallFlight is the typical shape of a golfer's shots.
type BallFlight string

// Known ball flights.
const (
	Draw     BallFlight = "Draw"
	Fade     BallFlight = "Fade"
	Straight BallFlight = "Straight"
	Hook     BallFlight = "Hook"
	Slice    BallFlight = "Slice"
)

// ParseBallFlight parses a ball flight name. "Slight Draw" and "Slight Fade" map to Draw and Fade.
func ParseBallFlight(raw string) (BallFlight, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "slight ")
	for _, f := range []BallFlight{Draw, Fade, Straight, Hook, Slice} {
		if v == strings.ToLower(string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("ball flight %q: %w", raw, ErrUnknownValue)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BallFlight) UnmarshalText(text []byte) error {
	f, err := ParseBallFlight(string(text))
	if err != nil {
		return err
	}
	*b = f
	return nil
}

// BudgetRange is an ordered price bucket a golfer is willing to spend.
type BudgetRange int

// Budget buckets in ascending order.
const (
	BudgetUnder300 BudgetRange = iota + 1
	Budget300To500
	Budget500To1000
	Budget1000To2000
	BudgetOver2000
)

var budgetBounds = map[BudgetRange][2]float64{
	BudgetUnder300:   {0, 300},
	Budget300To500:   {300, 500},
	Budget500To1000:  {500, 1000},
	Budget1000To2000: {1000, 2000},
	BudgetOver2000:   {2000, 0},
}

var budgetNames = map[BudgetRange]string{
	BudgetUnder300:   "under-300",
	Budget300To500:   "300-500",
	Budget500To1000:  "500-1000",
	Budget1000To2000: "1000-2000",
	BudgetOver2000:   "over-2000",
}

// String returns the canonical bucket name.
func (b BudgetRange) String() string {
	if name, ok := budgetNames[b]; ok {
		return name
	}
	return fmt.Sprintf("BudgetRange(%d)", int(b))
}

// Bounds returns the price interval of the bucket. A zero upper bound means unbounded.
func (b BudgetRange) Bounds() (lo, hi float64) {
	bounds := budgetBounds[b]
	return bounds[0], bounds[1]
}

// ParseBudgetRange accepts canonical names as well as forms like "$500-1000",
// "Under $300" and "$2000+". Open-ended forms must name the edge of the
// first or last bucket, so "under 1000" and "500+" are rejected.
func ParseBudgetRange(raw string) (BudgetRange, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	for b, name := range budgetNames {
		if v == name {
			return b, nil
		}
	}

	var (
		amount string
		want   BudgetRange
	)
	switch {
	case strings.HasPrefix(v, "under"):
		amount, want = strings.TrimPrefix(v, "under"), BudgetUnder300
	case strings.HasPrefix(v, "<"):
		amount, want = strings.TrimPrefix(v, "<"), BudgetUnder300
	case strings.HasPrefix(v, "over"):
		amount, want = strings.TrimPrefix(v, "over"), BudgetOver2000
	case strings.HasPrefix(v, ">"):
		amount, want = strings.TrimPrefix(v, ">"), BudgetOver2000
	case strings.HasSuffix(v, "+"):
		amount, want = strings.TrimSuffix(v, "+"), BudgetOver2000
	default:
		return 0, fmt.Errorf("budget range %q: %w", raw, ErrUnknownValue)
	}

	edge, err := strconv.ParseFloat(strings.Trim(amount, "-="), 64)
	if err != nil {
		return 0, fmt.Errorf("budget range %q: %w", raw, ErrUnknownValue)
	}
	lo, hi := want.Bounds()
	if (want == BudgetUnder300 && edge != hi) || (want == BudgetOver2000 && edge != lo) {
		return 0, fmt.Errorf("budget range %q: no bucket ends at %g: %w", raw, edge, ErrUnknownValue)
	}
	return want, nil
}

// MarshalText implements encoding.TextMarshaler.
func (b BudgetRange) MarshalText() ([]byte, error) {
	if _, ok := budgetNames[b]; !ok {
		return nil, fmt.Errorf("budget range %d: %w", int(b), ErrUnknownValue)
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BudgetRange) UnmarshalText(text []byte) error {
	r, err := ParseBudgetRange(string(text))
	if err != nil {
		return err
	}
	*b = r
	return nil
}
