package goal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is the serialized form of a goal. Progress holds the JSON of
// the concrete progress record for Type, or null for drafts.
type Document struct {
	ID          string `json:"id"`
	FamilyID    string `json:"familyId,omitempty"`
	CreatedBy   string `json:"createdBy,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Type       Type       `json:"type"`
	Metric     Metric     `json:"metric"`
	Target     float64    `json:"target"`
	Difficulty Difficulty `json:"difficulty"`
	Status     Status     `json:"status"`

	Participants  []string          `json:"participants"`
	Milestones    []Milestone       `json:"milestones,omitempty"`
	Rewards       []Reward          `json:"rewards,omitempty"`
	Progress      json.RawMessage   `json:"progress"`
	Contributions []Contribution    `json:"contributions,omitempty"`
	Recurring     *RecurringPattern `json:"recurringPattern,omitempty"`
	ParentGoalID  string            `json:"parentGoalId,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	PausedAt    *time.Time `json:"pausedAt,omitempty"`
	ResumedAt   *time.Time `json:"resumedAt,omitempty"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty"`

	CompletionData map[string]any `json:"completionData,omitempty"`
	CancelReason   string         `json:"cancelReason,omitempty"`
	CancelledBy    string         `json:"cancelledBy,omitempty"`
	PauseReason    string         `json:"pauseReason,omitempty"`
	PausedBy       string         `json:"pausedBy,omitempty"`
	ResumedBy      string         `json:"resumedBy,omitempty"`
}

// ToPersistable converts g into its document form.
func (g *Goal) ToPersistable() (Document, error) {
	progress := json.RawMessage("null")
	if g.Progress != nil {
		raw, err := json.Marshal(g.Progress)
		if err != nil {
			return Document{}, fmt.Errorf("marshal progress: %w", err)
		}
		progress = raw
	}

	return Document{
		ID:             g.ID,
		FamilyID:       g.FamilyID,
		CreatedBy:      g.CreatedBy,
		Title:          g.Title,
		Description:    g.Description,
		Type:           g.Type,
		Metric:         g.Metric,
		Target:         g.Target,
		Difficulty:     g.Difficulty,
		Status:         g.Status,
		Participants:   append([]string(nil), g.Participants...),
		Milestones:     append([]Milestone(nil), g.Milestones...),
		Rewards:        append([]Reward(nil), g.Rewards...),
		Progress:       progress,
		Contributions:  append([]Contribution(nil), g.Contributions...),
		Recurring:      g.Recurring,
		ParentGoalID:   g.ParentGoalID,
		CreatedAt:      g.CreatedAt,
		StartDate:      copyTime(g.StartDate),
		EndDate:        copyTime(g.EndDate),
		CompletedAt:    copyTime(g.CompletedAt),
		CancelledAt:    copyTime(g.CancelledAt),
		PausedAt:       copyTime(g.PausedAt),
		ResumedAt:      copyTime(g.ResumedAt),
		ExpiredAt:      copyTime(g.ExpiredAt),
		CompletionData: g.CompletionData,
		CancelReason:   g.CancelReason,
		CancelledBy:    g.CancelledBy,
		PauseReason:    g.PauseReason,
		PausedBy:       g.PausedBy,
		ResumedBy:      g.ResumedBy,
	}, nil
}

// FromPersisted rebuilds a goal from doc. Progress is decoded into the
// record for doc.Type; a progress body of a different shape is an error.
func FromPersisted(doc Document, opts ...Option) (*Goal, error) {
	progress, err := decodeProgress(doc.Type, doc.Progress)
	if err != nil {
		return nil, fmt.Errorf("goal %s: %w", doc.ID, err)
	}
	if progress == nil && doc.Status != StatusDraft {
		return nil, fmt.Errorf("goal %s: status %s requires progress", doc.ID, doc.Status)
	}

	g := &Goal{
		ID:             doc.ID,
		FamilyID:       doc.FamilyID,
		CreatedBy:      doc.CreatedBy,
		Title:          doc.Title,
		Description:    doc.Description,
		Type:           doc.Type,
		Metric:         doc.Metric,
		Target:         doc.Target,
		Difficulty:     doc.Difficulty,
		Status:         doc.Status,
		Participants:   doc.Participants,
		Milestones:     doc.Milestones,
		Rewards:        doc.Rewards,
		Progress:       progress,
		Contributions:  doc.Contributions,
		Recurring:      doc.Recurring,
		ParentGoalID:   doc.ParentGoalID,
		CreatedAt:      doc.CreatedAt,
		StartDate:      doc.StartDate,
		EndDate:        doc.EndDate,
		CompletedAt:    doc.CompletedAt,
		CancelledAt:    doc.CancelledAt,
		PausedAt:       doc.PausedAt,
		ResumedAt:      doc.ResumedAt,
		ExpiredAt:      doc.ExpiredAt,
		CompletionData: doc.CompletionData,
		CancelReason:   doc.CancelReason,
		CancelledBy:    doc.CancelledBy,
		PauseReason:    doc.PauseReason,
		PausedBy:       doc.PausedBy,
		ResumedBy:      doc.ResumedBy,
	}
	g.apply(opts)
	return g, nil
}

func decodeProgress(t Type, raw json.RawMessage) (Progress, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var p Progress
	switch t {
	case TypeCollective:
		p = &CollectiveProgress{}
	case TypeIndividual:
		p = &IndividualProgress{}
	case TypeCompetitive:
		p = &CompetitiveProgress{}
	case TypeCooperative:
		p = &CooperativeProgress{}
	default:
		return nil, fmt.Errorf("unknown goal type %q", t)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("progress does not match type %s: %w", t, err)
	}
	return p.clone(), nil
}
