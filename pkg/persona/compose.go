package persona

import (
	"strings"
)

// EmailRequest describes the email to compose.
type EmailRequest struct {
	// RecipientName is used in the greeting when set.
	RecipientName string

	// Purpose is a one-sentence statement of what the email is about.
	Purpose string

	// KeyPoints are rendered into the body, one per line or folded into
	// prose depending on the persona's format preference.
	KeyPoints []string

	// Language overrides the persona's preferred language when set.
	Language string
}

// ComposedEmail is the styled output plus a style-match estimate.
type ComposedEmail struct {
	Greeting string `json:"greeting"`
	Body     string `json:"body"`
	Signoff  string `json:"signoff"`

	// StyleMatch in [0,1] estimates how much of the output was driven by
	// learned style rather than defaults.
	StyleMatch float64 `json:"style_match"`
}

// ComposeEmail builds a greeting/body/signoff in the persona's learned
// style: observed greeting and signoff phrases win over formality defaults,
// verbosity controls how much the key points are elaborated, and the
// persona's preferred language picks the phrase set.
func (s *Service) ComposeEmail(p *UserPersona, req *EmailRequest) *ComposedEmail {
	lang := req.Language
	if lang == "" {
		lang = p.Style.PreferredLanguage
	}
	norwegian := lang == "no" || lang == "nb" || lang == "nn"

	learned := 0
	total := 4

	greeting, fromStyle := s.greeting(p, req.RecipientName, norwegian)
	if fromStyle {
		learned++
	}
	signoff, fromStyle := s.signoff(p, norwegian)
	if fromStyle {
		learned++
	}
	if p.Style.Verbosity != "" {
		learned++
	}
	if p.Style.PreferredLanguage != "" && req.Language == "" {
		learned++
	}

	return &ComposedEmail{
		Greeting:   greeting,
		Body:       s.body(p, req, norwegian),
		Signoff:    signoff,
		StyleMatch: float64(learned) / float64(total),
	}
}

// greeting prefers the user's own observed phrases; the boolean reports
// whether learned style (phrase or formality) drove the choice.
func (s *Service) greeting(p *UserPersona, recipient string, norwegian bool) (string, bool) {
	if n := len(p.Style.Greetings); n > 0 {
		g := p.Style.Greetings[n-1]
		if recipient != "" {
			return g + " " + recipient + ",", true
		}
		return g + ",", true
	}

	var g string
	switch {
	case p.Style.Formality == "formal" && norwegian:
		g = "Kjære"
	case p.Style.Formality == "formal":
		g = "Dear"
	case p.Style.Formality == "informal" && norwegian:
		g = "Hei"
	case p.Style.Formality == "informal":
		g = "Hi"
	case norwegian:
		g = "Hei"
	default:
		g = "Hello"
	}
	if recipient != "" {
		g += " " + recipient
	}
	return g + ",", p.Style.Formality != ""
}

func (s *Service) signoff(p *UserPersona, norwegian bool) (string, bool) {
	if n := len(p.Style.Signoffs); n > 0 {
		return p.Style.Signoffs[n-1] + ",", true
	}

	switch {
	case p.Style.Formality == "formal" && norwegian:
		return "Med vennlig hilsen,", true
	case p.Style.Formality == "formal":
		return "Kind regards,", true
	case p.Style.Formality == "informal" && norwegian:
		return "Hilsen,", true
	case p.Style.Formality == "informal":
		return "Cheers,", true
	case norwegian:
		return "Vennlig hilsen,", false
	default:
		return "Best regards,", false
	}
}

// body renders the purpose and key points. Concise personas get a bare
// bullet list; verbose personas get a lead-in sentence and prose framing.
func (s *Service) body(p *UserPersona, req *EmailRequest, norwegian bool) string {
	var sb strings.Builder

	purpose := strings.TrimSpace(req.Purpose)
	if purpose != "" {
		sb.WriteString(purpose)
		if !strings.HasSuffix(purpose, ".") {
			sb.WriteString(".")
		}
	}

	if len(req.KeyPoints) == 0 {
		return sb.String()
	}

	if p.Style.Verbosity == "verbose" {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if norwegian {
			sb.WriteString("Her er de viktigste punktene:")
		} else {
			sb.WriteString("Here are the key points I wanted to share:")
		}
	}
	for _, point := range req.KeyPoints {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(strings.TrimSpace(point))
	}
	return sb.String()
}
