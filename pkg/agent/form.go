package agent

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/sdvlabs/campusbot/internal/models"
	"github.com/sdvlabs/campusbot/internal/types"
)

// CollectionState is a step of the lead-collection flow.
type CollectionState string

const (
	StateGreeting            CollectionState = "greeting"
	StateCollectingName      CollectionState = "collecting_name"
	StateCollectingFirstname CollectionState = "collecting_firstname"
	StateCollectingPhone     CollectionState = "collecting_phone"
	StateCollectingEmail     CollectionState = "collecting_email"
	StateCompleted           CollectionState = "completed"
)

var stateMessages = map[CollectionState]string{
	StateGreeting:            "Je vais vous aider à compléter votre inscription. Pour commencer, pouvez-vous me donner votre nom de famille ?",
	StateCollectingName:      "Parfait ! Maintenant, quel est votre prénom ?",
	StateCollectingFirstname: "Excellent ! J'ai besoin maintenant de votre numéro de téléphone.",
	StateCollectingPhone:     "Merci ! Pour finir, j'aurais besoin de votre adresse email.",
	StateCompleted:           "Excellent ! J'ai bien enregistré toutes vos informations :",
}

var errorMessages = map[string]string{
	"name":      "Le nom ne peut pas être vide. Pouvez-vous le saisir à nouveau ?",
	"firstname": "Le prénom ne peut pas être vide. Pouvez-vous le saisir à nouveau ?",
	"phone":     "Le numéro de téléphone ne semble pas valide. Pouvez-vous le saisir à nouveau ? (Format attendu : 06.12.34.56.78 ou 0612345678)",
	"email":     "L'adresse email ne semble pas valide. Pouvez-vous la saisir à nouveau ?",
}

var (
	phoneSeparators = regexp.MustCompile(`[\s.\-]`)
	phoneNational   = regexp.MustCompile(`^0[1-9]\d{8}$`)
	phonePrefixed   = regexp.MustCompile(`^\+33[1-9]\d{8}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// FormAgent walks a user through the registration form one field at a
// time and persists the completed lead.
type FormAgent struct {
	writer types.LeadWriter

	mu      sync.Mutex
	state   CollectionState
	lead    models.Lead
	history []string
}

func NewFormAgent(writer types.LeadWriter) *FormAgent {
	a := &FormAgent{writer: writer}
	a.reset()
	return a
}

// ProcessInput advances the state machine with one user message and
// returns the next prompt. Invalid input keeps the current state.
func (a *FormAgent) ProcessInput(input string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	input = strings.TrimSpace(input)
	a.history = append(a.history, "Utilisateur: "+input)

	var (
		response string
		err      error
	)

	switch a.state {
	case StateGreeting:
		a.state = StateCollectingName
		response = stateMessages[StateGreeting]
	case StateCollectingName:
		response = a.collectName(input)
	case StateCollectingFirstname:
		response = a.collectFirstname(input)
	case StateCollectingPhone:
		response = a.collectPhone(input)
	case StateCollectingEmail:
		response, err = a.collectEmail(input)
	case StateCompleted:
		response = "Merci ! Vos informations ont déjà été enregistrées. Y a-t-il autre chose pour laquelle je peux vous aider ?"
	}
	if err != nil {
		return "", err
	}

	a.history = append(a.history, "Agent: "+response)
	return response, nil
}

func (a *FormAgent) collectName(input string) string {
	if !ValidateName(input) {
		return errorMessages["name"]
	}
	a.lead.LastName = titleCase(input)
	a.state = StateCollectingFirstname
	return stateMessages[StateCollectingName]
}

func (a *FormAgent) collectFirstname(input string) string {
	if !ValidateName(input) {
		return errorMessages["firstname"]
	}
	a.lead.FirstName = titleCase(input)
	a.state = StateCollectingPhone
	return stateMessages[StateCollectingFirstname]
}

func (a *FormAgent) collectPhone(input string) string {
	if !ValidatePhone(input) {
		return errorMessages["phone"]
	}
	a.lead.Phone = FormatPhone(input)
	a.state = StateCollectingEmail
	return stateMessages[StateCollectingPhone]
}

func (a *FormAgent) collectEmail(input string) (string, error) {
	if !ValidateEmail(input) {
		return errorMessages["email"], nil
	}
	a.lead.Email = strings.ToLower(strings.TrimSpace(input))
	a.lead.ID = uuid.NewString()
	a.lead.Timestamp = time.Now()
	a.state = StateCompleted

	if a.writer != nil {
		if err := a.writer.Append(a.lead); err != nil {
			return "", fmt.Errorf("failed to save lead: %w", err)
		}
	}

	return fmt.Sprintf(`%s

• **Nom:** %s
• **Prénom:** %s
• **Téléphone:** %s
• **Email:** %s

Vos informations ont été enregistrées avec succès !
Un conseiller vous contactera prochainement pour la suite de votre inscription à Sup de Vinci.

Merci et à bientôt !`,
		stateMessages[StateCompleted],
		a.lead.LastName,
		a.lead.FirstName,
		a.lead.Phone,
		a.lead.Email,
	), nil
}

// InProgress reports whether a collection session has started but not
// completed; the router keeps sending messages here while it is true.
func (a *FormAgent) InProgress() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state != StateGreeting && a.state != StateCompleted
}

func (a *FormAgent) IsComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateCompleted
}

func (a *FormAgent) CurrentState() CollectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CurrentLead returns a copy of the fields collected so far.
func (a *FormAgent) CurrentLead() models.Lead {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lead
}

// History returns a copy of the session transcript.
func (a *FormAgent) History() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.history...)
}

// Reset starts a fresh collection session.
func (a *FormAgent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

func (a *FormAgent) reset() {
	a.state = StateGreeting
	a.lead = models.Lead{}
	a.history = nil
}

// ValidateName accepts names of at least two letters, allowing spaces and
// hyphens for compound names.
func ValidateName(name string) bool {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' {
			return false
		}
	}
	return strings.ContainsFunc(name, unicode.IsLetter)
}

// ValidatePhone accepts French numbers, national (06...) or international
// (+336...), with optional spaces, dots or dashes.
func ValidatePhone(phone string) bool {
	clean := phoneSeparators.ReplaceAllString(phone, "")
	return phoneNational.MatchString(clean) || phonePrefixed.MatchString(clean)
}

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// FormatPhone normalizes a French number to dotted pairs (06.12.34.56.78).
func FormatPhone(phone string) string {
	clean := phoneSeparators.ReplaceAllString(phone, "")
	if strings.HasPrefix(clean, "+33") {
		clean = "0" + clean[3:]
	}

	if len(clean) != 10 {
		return clean
	}

	pairs := make([]string, 0, 5)
	for i := 0; i < 10; i += 2 {
		pairs = append(pairs, clean[i:i+2])
	}
	return strings.Join(pairs, ".")
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
