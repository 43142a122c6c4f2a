// Package catalogue loads, validates, and indexes the trivia question
// dataset, and generates per-round alternatives and answer validation for
// each question type.
//
// Grounded on the original Rust db.rs: the on-disk shape, the validation
// order and messages, and the color-weighting formula are all ported
// directly. The loader itself logs nothing; the server reports the loaded
// question count after Load returns.
package catalogue

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// QuestionType is the closed tag for the GameQuestion variant.
type QuestionType int

const (
	TypeColor QuestionType = iota
	TypeCharacter
	TypeText
	TypeYear
)

func (t QuestionType) String() string {
	switch t {
	case TypeColor:
		return "color"
	case TypeCharacter:
		return "character"
	case TypeText:
		return "text"
	case TypeYear:
		return "year"
	default:
		return "unknown"
	}
}

func parseQuestionType(s string) (QuestionType, bool) {
	switch s {
	case "color":
		return TypeColor, true
	case "character":
		return TypeCharacter, true
	case "text":
		return TypeText, true
	case "year":
		return TypeYear, true
	default:
		return 0, false
	}
}

func (t QuestionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *QuestionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := parseQuestionType(s)
	if !ok {
		return fmt.Errorf("catalogue: unknown question type %q", s)
	}
	*t = parsed
	return nil
}

// rawMedia is the on-disk shape of a Media entity.
type rawMedia struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	ReleaseYear *int    `json:"release_year"`
	PlaybackID  *string `json:"playback_id"`
}

// rawCharacter is the on-disk shape of a Character entity. Only the name
// survives indexing; it exists here purely for load-time validation.
type rawCharacter struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

type rawQuestion struct {
	ID           int64        `json:"id"`
	MediaID      int64        `json:"media_id"`
	QuestionType QuestionType `json:"question_type"`
	QuestionText *string      `json:"question_text"`
	ImageURL     *string      `json:"image_url"`
	IsActive     bool         `json:"is_active"`
}

type rawOption struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	OptionText string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
}

type rawSet struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	QuestionIDs []int64 `json:"question_ids"`
}

// StoredData is the full on-disk document shape: {media[], characters[],
// questions[], options[], sets[]}.
type StoredData struct {
	Media      []rawMedia     `json:"media"`
	Characters []rawCharacter `json:"characters"`
	Questions  []rawQuestion  `json:"questions"`
	Options    []rawOption    `json:"options"`
	Sets       []rawSet       `json:"sets"`
}

// ValidationError names the offending id/field of a failed invariant check.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Validate runs the full invariant check from spec §3 and returns the first
// violation found, in this order: duplicate ids (media, character
// id/name/image, question, option, set), then each question's media
// reference, then each option's question reference together with its text
// validity against that question's type, then each set's question
// references.
func (d *StoredData) Validate() error {
	mediaIDs := make(map[int64]struct{}, len(d.Media))
	for _, m := range d.Media {
		if _, dup := mediaIDs[m.ID]; dup {
			return validationErrorf("Duplicate media ID: %d", m.ID)
		}
		mediaIDs[m.ID] = struct{}{}
	}

	characterIDs := make(map[int64]struct{}, len(d.Characters))
	characterNames := make(map[string]struct{}, len(d.Characters))
	characterImages := make(map[string]struct{}, len(d.Characters))
	for _, c := range d.Characters {
		if _, dup := characterIDs[c.ID]; dup {
			return validationErrorf("Duplicate character ID: %d", c.ID)
		}
		characterIDs[c.ID] = struct{}{}

		if _, dup := characterNames[c.Name]; dup {
			return validationErrorf("Duplicate character name: %s", c.Name)
		}
		characterNames[c.Name] = struct{}{}

		if _, dup := characterImages[c.ImageURL]; dup {
			return validationErrorf("Duplicate character image URL: %s", c.ImageURL)
		}
		characterImages[c.ImageURL] = struct{}{}
	}

	questionIDs := make(map[int64]struct{}, len(d.Questions))
	questionByID := make(map[int64]rawQuestion, len(d.Questions))
	for _, q := range d.Questions {
		if _, dup := questionIDs[q.ID]; dup {
			return validationErrorf("Duplicate question ID: %d", q.ID)
		}
		questionIDs[q.ID] = struct{}{}
		questionByID[q.ID] = q
	}

	optionIDs := make(map[int64]struct{}, len(d.Options))
	for _, o := range d.Options {
		if _, dup := optionIDs[o.ID]; dup {
			return validationErrorf("Duplicate option ID: %d", o.ID)
		}
		optionIDs[o.ID] = struct{}{}
	}

	setIDs := make(map[int64]struct{}, len(d.Sets))
	for _, s := range d.Sets {
		if _, dup := setIDs[s.ID]; dup {
			return validationErrorf("Duplicate set ID: %d", s.ID)
		}
		setIDs[s.ID] = struct{}{}
	}

	for _, q := range d.Questions {
		if _, ok := mediaIDs[q.MediaID]; !ok {
			return validationErrorf("Question %d references non-existent media ID %d", q.ID, q.MediaID)
		}
	}

	for _, o := range d.Options {
		q, ok := questionByID[o.QuestionID]
		if !ok {
			return validationErrorf("Option %d references non-existent question ID %d", o.ID, o.QuestionID)
		}

		switch q.QuestionType {
		case TypeColor:
			if _, ok := ParseColor(o.OptionText); !ok {
				return validationErrorf("Option %d references invalid color name '%s'", o.ID, o.OptionText)
			}
		case TypeCharacter:
			if _, ok := characterNames[o.OptionText]; !ok {
				return validationErrorf("Option %d references non-existent character name '%s'", o.ID, o.OptionText)
			}
		}
	}

	for _, s := range d.Sets {
		for _, qid := range s.QuestionIDs {
			if _, ok := questionIDs[qid]; !ok {
				return validationErrorf("Set %d references non-existent question ID %d", s.ID, qid)
			}
		}
	}

	return nil
}

// Media is the indexed, load-time-validated form of a media entity.
type Media struct {
	ID          int64
	Title       string
	Artist      string
	ReleaseYear *int
	PlaybackID  string
}

// Option is one answer choice attached to a question.
type Option struct {
	Text      string
	IsCorrect bool
}

// Question is the aggregate (question + media + options) that the engine
// and protocol layers operate on.
type Question struct {
	ID           int64
	Type         QuestionType
	Media        Media
	QuestionText string
	ImageURL     string
	Options      []Option
}

// CorrectOptions returns the subset of Options flagged as correct.
func (q Question) CorrectOptions() []Option {
	out := make([]Option, 0, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			out = append(out, o)
		}
	}
	return out
}

// QuestionSet is a named, ordered list of questions chosen from the
// catalogue.
type QuestionSet struct {
	ID        int64
	Name      string
	Questions []Question
}

// Catalogue is the read-only, indexed view of a loaded dataset.
type Catalogue struct {
	path         string
	Questions    []Question
	Sets         []QuestionSet
	ColorWeights map[Color]float64
}

// Path returns the on-disk path the catalogue was loaded from.
func (c *Catalogue) Path() string {
	return c.path
}

// Load reads, validates, and indexes a catalogue document from path.
func Load(path string) (*Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: read %s: %w", path, err)
	}

	var data StoredData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("catalogue: parse %s: %w", path, err)
	}

	return build(path, &data)
}

func build(path string, data *StoredData) (*Catalogue, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	mediaByID := make(map[int64]Media, len(data.Media))
	for _, m := range data.Media {
		media := Media{ID: m.ID, Title: m.Title, Artist: m.Artist, ReleaseYear: m.ReleaseYear}
		if m.PlaybackID != nil {
			media.PlaybackID = *m.PlaybackID
		}
		mediaByID[m.ID] = media
	}

	optionsByQuestion := make(map[int64][]Option, len(data.Questions))
	for _, o := range data.Options {
		optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], Option{Text: o.OptionText, IsCorrect: o.IsCorrect})
	}

	questionByID := make(map[int64]Question, len(data.Questions))
	active := make([]Question, 0, len(data.Questions))
	for _, q := range data.Questions {
		agg := Question{
			ID:      q.ID,
			Type:    q.QuestionType,
			Media:   mediaByID[q.MediaID],
			Options: optionsByQuestion[q.ID],
		}
		if q.QuestionText != nil {
			agg.QuestionText = *q.QuestionText
		}
		if q.ImageURL != nil {
			agg.ImageURL = *q.ImageURL
		}
		questionByID[q.ID] = agg
		if q.IsActive {
			active = append(active, agg)
		}
	}

	sets := make([]QuestionSet, 0, len(data.Sets))
	for _, s := range data.Sets {
		qs := QuestionSet{ID: s.ID, Name: s.Name}
		for _, qid := range s.QuestionIDs {
			if q, ok := questionByID[qid]; ok {
				qs.Questions = append(qs.Questions, q)
			}
		}
		sets = append(sets, qs)
	}

	weights := calculateColorWeights(active)

	return &Catalogue{path: path, Questions: active, Sets: sets, ColorWeights: weights}, nil
}

// calculateColorWeights computes w(c) = sqrt(count(c)/N) + 0.15 for every
// palette color, where count(c) counts correct color options naming c
// across active color questions and N is the count of all active
// questions (every type, per db.rs::calculate_color_weights).
func calculateColorWeights(active []Question) map[Color]float64 {
	counts := make(map[Color]int, len(Palette))
	n := len(active)

	for _, q := range active {
		if q.Type != TypeColor {
			continue
		}
		for _, o := range q.Options {
			if !o.IsCorrect {
				continue
			}
			if c, ok := ParseColor(o.Text); ok {
				counts[c]++
			}
		}
	}

	weights := make(map[Color]float64, len(Palette))
	for _, c := range Palette {
		ratio := 0.0
		if n > 0 {
			ratio = float64(counts[c]) / float64(n)
		}
		weights[c] = math.Sqrt(ratio) + 0.15
	}
	return weights
}

// SaveEdited validates data and persists it alongside path with a
// "_from_web.json" suffix, mirroring db.rs::set_stored_data. No editing
// surface is provided; this is the bare load/validate/persist primitive.
func SaveEdited(path string, data StoredData) error {
	if err := data.Validate(); err != nil {
		return err
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("catalogue: marshal edited data: %w", err)
	}

	return os.WriteFile(path+"_from_web.json", out, 0o644)
}
