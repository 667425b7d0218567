package entity

type GradingBand struct {
	Base
	Grade         string `json:"grade" db:"grade" validate:"required,max=2"`
	MinPercentage int    `json:"min_percentage" db:"min_percentage" validate:"min=0,max=100"`
	MaxPercentage int    `json:"max_percentage" db:"max_percentage" validate:"min=0,max=100"`
	Points        int    `json:"points" db:"points" validate:"min=0,max=12"`
	Remarks       string `json:"remarks" db:"remarks" validate:"required,max=60"`
}

func (GradingBand) Kind() Kind { return KindGradingBand }

// Contains reports whether pct falls within the band, bounds included.
func (g GradingBand) Contains(pct int) bool {
	return pct >= g.MinPercentage && pct <= g.MaxPercentage
}

// DefaultGradingScale is the 12-band scale seeded on first run.
// Bands are ordered from the highest grade down and cover 0-100 without gaps or overlaps.
// Base fields are left zero: the caller stamps them before insertion.
func DefaultGradingScale() []GradingBand {
	return []GradingBand{
		{Grade: "A", MinPercentage: 80, MaxPercentage: 100, Points: 12, Remarks: "Excellent"},
		{Grade: "A-", MinPercentage: 75, MaxPercentage: 79, Points: 11, Remarks: "Very good"},
		{Grade: "B+", MinPercentage: 70, MaxPercentage: 74, Points: 10, Remarks: "Good"},
		{Grade: "B", MinPercentage: 65, MaxPercentage: 69, Points: 9, Remarks: "Good"},
		{Grade: "B-", MinPercentage: 60, MaxPercentage: 64, Points: 8, Remarks: "Above average"},
		{Grade: "C+", MinPercentage: 55, MaxPercentage: 59, Points: 7, Remarks: "Average"},
		{Grade: "C", MinPercentage: 50, MaxPercentage: 54, Points: 6, Remarks: "Average"},
		{Grade: "C-", MinPercentage: 45, MaxPercentage: 49, Points: 5, Remarks: "Below average"},
		{Grade: "D+", MinPercentage: 40, MaxPercentage: 44, Points: 4, Remarks: "Weak"},
		{Grade: "D", MinPercentage: 35, MaxPercentage: 39, Points: 3, Remarks: "Weak"},
		{Grade: "D-", MinPercentage: 30, MaxPercentage: 34, Points: 2, Remarks: "Poor"},
		{Grade: "E", MinPercentage: 0, MaxPercentage: 29, Points: 1, Remarks: "Very poor"},
	}
}

// GradeFor returns the band containing pct, or false if none does.
func GradeFor(bands []GradingBand, pct int) (GradingBand, bool) {
	for _, b := range bands {
		if b.Contains(pct) {
			return b, true
		}
	}
	return GradingBand{}, false
}
