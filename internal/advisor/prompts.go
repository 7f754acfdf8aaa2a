package advisor

import (
	_ "embed"
	"strconv"
	"strings"
	"text/template"
)

// Sentinel separates the primary answer from the suggested follow-up questions.
const Sentinel = "---SUGGESTIONS---"

//go:embed prompts/plan.tmpl
var planPromptText string

//go:embed prompts/diagnosis.tmpl
var diagnosisPromptText string

var (
	planPrompt      = template.Must(template.New("plan").Parse(planPromptText))
	diagnosisPrompt = template.Must(template.New("diagnosis").Parse(diagnosisPromptText))
)

// PlanRequest is a validated request for a farm business plan.
type PlanRequest struct {
	Location string
	Space    string
	Budget   float64
	Country  string
	Currency string
}

// BudgetString formats the budget without trailing zeros (1500, 99.5).
func (r PlanRequest) BudgetString() string {
	return strconv.FormatFloat(r.Budget, 'f', -1, 64)
}

// PlanPrompt renders the business-plan prompt for r.
func PlanPrompt(r PlanRequest) (string, error) {
	var b strings.Builder
	err := planPrompt.Execute(&b, map[string]string{
		"Sentinel": Sentinel,
		"Location": r.Location,
		"Country":  r.Country,
		"Currency": r.Currency,
		"Budget":   r.BudgetString(),
		"Space":    r.Space,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// DiagnosisPrompt renders the image-diagnosis prompt for a crop type.
func DiagnosisPrompt(cropType string) (string, error) {
	var b strings.Builder
	err := diagnosisPrompt.Execute(&b, map[string]string{
		"Sentinel": Sentinel,
		"CropType": cropType,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
