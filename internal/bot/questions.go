package bot

import (
	"strings"

	"github.com/visabot-io/visabot/internal/models"
)

// answerRule maps a keyword found in a security question prompt to the
// stored answer for it. Rules are evaluated in order; the first match wins.
type answerRule struct {
	keyword string
	answer  func(*models.User) string
}

var answerRules = []answerRule{
	{keyword: "food", answer: func(u *models.User) string { return u.FavoriteFood }},
	{keyword: "pet", answer: func(u *models.User) string { return u.PetName }},
	{keyword: "sibling", answer: func(u *models.User) string { return u.Sibling }},
}

// classifyQuestion picks the stored answer for a security question prompt.
// Prompts that match no rule are left blank, which the site accepts for
// optional questions.
func classifyQuestion(prompt string, user *models.User) (string, bool) {
	lower := strings.ToLower(prompt)
	for _, rule := range answerRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.answer(user), true
		}
	}
	return "", false
}
