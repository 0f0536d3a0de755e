package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Score is a candidate's total score. A score that failed numeric coercion on
// import is NaN; it is encoded as JSON null so it survives persistence.
// Infinite scores are encoded as the strings "Infinity" and "-Infinity".
type Score float64

const (
	posInf = `"Infinity"`
	negInf = `"-Infinity"`
)

// InvalidScore returns the NaN score used for unparseable input.
func InvalidScore() Score {
	return Score(math.NaN())
}

// Valid reports whether the score is a real number.
func (s Score) Valid() bool {
	return !math.IsNaN(float64(s))
}

// String formats the score the way it is shown to the operator; invalid scores
// are empty.
func (s Score) String() string {
	if !s.Valid() {
		return ""
	}
	return strconv.FormatFloat(float64(s), 'f', -1, 64)
}

func (s Score) MarshalJSON() ([]byte, error) {
	switch f := float64(s); {
	case math.IsNaN(f):
		return []byte("null"), nil
	case math.IsInf(f, 1):
		return []byte(posInf), nil
	case math.IsInf(f, -1):
		return []byte(negInf), nil
	default:
		return json.Marshal(f)
	}
}

func (s *Score) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null":
		*s = InvalidScore()
		return nil
	case posInf:
		*s = Score(math.Inf(1))
		return nil
	case negInf:
		*s = Score(math.Inf(-1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// Candidate represents one imported participant.
// ID is the identity key used for winner exclusion; Name is for display.
type Candidate struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Institution     string `json:"institution"`
	InstitutionType string `json:"institutionType"`
	TotalScore      Score  `json:"totalScore"`
}

// Winner stores the outcome of a single draw: the candidate as captured at win
// time and when the draw completed.
type Winner struct {
	Candidate
	DrawnAt time.Time `json:"drawnAt"`
}

// Settings holds the operator's display configuration.
type Settings struct {
	Title     string `json:"title"`
	ShowScore bool   `json:"showScore"`
}

// DefaultTitle is shown until the operator sets one.
const DefaultTitle = "Undian Pemenang Doorprize INAHEF 2024"

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseDrawing Phase = "drawing"
	PhaseResult  Phase = "result"
)

// DrawState is a snapshot of the draw session, rendered on the draw screen and
// pushed to connected displays.
type DrawState struct {
	Version      uint64     `json:"version"`
	Phase        Phase      `json:"phase"`
	Countdown    int        `json:"countdown"`
	PreviewIndex int        `json:"previewIndex"`
	Preview      string     `json:"preview,omitempty"`
	Winner       *Candidate `json:"winner,omitempty"`
	Eligible     int        `json:"eligible"`
	Candidates   int        `json:"candidates"`
	Winners      int        `json:"winners"`
	Error        string     `json:"error,omitempty"`
}
