package persona

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/intelliclone/memengine-go/pkg/extraction"
)

// saveRetries bounds how often UpdateFromInsights re-reads and re-applies
// after losing an optimistic-concurrency race.
const saveRetries = 3

// Service maintains persona aggregates from extracted insights.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a persona service. A nil logger is replaced with a
// no-op logger.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// GetOrCreatePersona returns the persona for the scope, creating and
// persisting a default-initialized one on first contact.
func (s *Service) GetOrCreatePersona(ctx context.Context, userID, tenantID, botID string) (*UserPersona, error) {
	p, err := s.store.Get(ctx, userID, tenantID, botID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p = &UserPersona{
		UserID:    userID,
		TenantID:  tenantID,
		BotID:     botID,
		Facts:     make(map[string][]string),
		CreatedAt: time.Now(),
	}
	if err := s.store.Save(ctx, p); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// Lost the creation race; the other writer's aggregate wins.
			return s.store.Get(ctx, userID, tenantID, botID)
		}
		return nil, err
	}
	return p, nil
}

// UpdateFromInsights applies a batch of insights to the user's persona.
//
// Each insight is dispatched to an explicit handler for its category; an
// insight that no handler accepts is skipped and logged, never fatal to the
// batch. The aggregate's confidence and conversation count are recomputed
// and the result saved with optimistic-concurrency retry.
func (s *Service) UpdateFromInsights(ctx context.Context, userID, tenantID, botID string, insights []extraction.Insight) (*UserPersona, error) {
	if len(insights) == 0 {
		return s.GetOrCreatePersona(ctx, userID, tenantID, botID)
	}

	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		p, err := s.GetOrCreatePersona(ctx, userID, tenantID, botID)
		if err != nil {
			return nil, err
		}

		applied := 0
		for _, ins := range insights {
			if err := s.apply(p, ins); err != nil {
				s.logger.Warn("persona insight skipped",
					zap.String("category", string(ins.Category)),
					zap.String("field", ins.Field),
					zap.Error(err),
				)
				continue
			}
			applied++
		}

		p.ConversationCount++
		p.Confidence = s.confidence(p)
		s.logger.Debug("persona updated",
			zap.String("user", userID),
			zap.Int("applied", applied),
			zap.Float64("confidence", p.Confidence),
		)

		err = s.store.Save(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// apply dispatches one insight to its field handler.
func (s *Service) apply(p *UserPersona, ins extraction.Insight) error {
	if strings.TrimSpace(ins.Value) == "" {
		return errors.New("empty insight value")
	}

	switch ins.Category {
	case extraction.InsightProfessional:
		return s.applyProfessional(p, ins)
	case extraction.InsightPreference:
		return s.applyPreference(p, ins)
	case extraction.InsightGoal:
		p.Professional.Goals = appendUnique(p.Professional.Goals, ins.Value)
		return nil
	case extraction.InsightChallenge:
		p.Professional.Challenges = appendUnique(p.Professional.Challenges, ins.Value)
		return nil
	case extraction.InsightRelationship:
		return s.applyRelationship(p, ins)
	case extraction.InsightStyle:
		return s.applyStyle(p, ins)
	default:
		return errors.New("unknown insight category")
	}
}

func (s *Service) applyProfessional(p *UserPersona, ins extraction.Insight) error {
	switch ins.Field {
	case "title":
		p.Professional.Title = ins.Value
	case "company":
		p.Professional.Company = ins.Value
	case "responsibility":
		p.Professional.Responsibilities = appendUnique(p.Professional.Responsibilities, ins.Value)
	default:
		return errors.New("unknown professional field " + ins.Field)
	}
	return nil
}

func (s *Service) applyPreference(p *UserPersona, ins extraction.Insight) error {
	switch ins.Field {
	case "interest":
		p.Preferences.Interests = appendUnique(p.Preferences.Interests, ins.Value)
	case "avoided_topic":
		p.Preferences.AvoidedTopics = appendUnique(p.Preferences.AvoidedTopics, ins.Value)
	case "format":
		p.Preferences.PreferredFormat = ins.Value
	default:
		return errors.New("unknown preference field " + ins.Field)
	}
	return nil
}

// applyRelationship stores a named person; the insight field is the role
// ("sister", "manager", ...). People are deduplicated by normalized
// (name, role).
func (s *Service) applyRelationship(p *UserPersona, ins extraction.Insight) error {
	if ins.Field == "" {
		return errors.New("relationship without role")
	}
	c := Contact{Name: ins.Value, Role: ins.Field}
	for _, existing := range p.Relationships.People {
		if strings.EqualFold(existing.Name, c.Name) && strings.EqualFold(existing.Role, c.Role) {
			return nil
		}
	}
	p.Relationships.People = append(p.Relationships.People, c)
	return nil
}

func (s *Service) applyStyle(p *UserPersona, ins extraction.Insight) error {
	switch ins.Field {
	case "formality":
		p.Style.Formality = ins.Value
	case "verbosity":
		p.Style.Verbosity = ins.Value
	case "directness":
		p.Style.Directness = ins.Value
	case "emotionality":
		p.Style.Emotionality = ins.Value
	case "technicality":
		p.Style.Technicality = ins.Value
	case "language":
		p.Style.PreferredLanguage = ins.Value
	case "greeting":
		p.Style.Greetings = appendUnique(p.Style.Greetings, ins.Value)
	case "signoff":
		p.Style.Signoffs = appendUnique(p.Style.Signoffs, ins.Value)
	default:
		return errors.New("unknown style field " + ins.Field)
	}
	return nil
}

// confidence combines evidence volume with field coverage. Both terms are
// monotone in accumulated evidence and the sum is bounded by 1.
func (s *Service) confidence(p *UserPersona) float64 {
	volume := 1.0 - math.Exp(-float64(p.ConversationCount)/10.0)

	filled := 0
	total := 8
	if p.Style.Formality != "" {
		filled++
	}
	if p.Style.Verbosity != "" {
		filled++
	}
	if p.Professional.Title != "" {
		filled++
	}
	if p.Professional.Company != "" {
		filled++
	}
	if len(p.Professional.Goals) > 0 {
		filled++
	}
	if len(p.Preferences.Interests) > 0 {
		filled++
	}
	if len(p.Relationships.People) > 0 {
		filled++
	}
	if p.Style.PreferredLanguage != "" {
		filled++
	}
	coverage := float64(filled) / float64(total)

	c := 0.5*volume + 0.5*coverage
	if c > 1 {
		c = 1
	}
	if c < p.Confidence {
		// Confidence never regresses once earned.
		return p.Confidence
	}
	return c
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return list
		}
	}
	return append(list, value)
}
