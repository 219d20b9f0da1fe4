package engine

import (
	"strings"
	"testing"

	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/intake/answers"
	"annual-reports-workers/internal/intake/derive"
	"annual-reports-workers/internal/intake/render"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return New(reg, logger.NewTestLogger(t), opts)
}

// submission builds a Hebrew-namespace submission from answers keyed by
// question or mapping id, plus the hidden report id and year.
func submission(reg *registry.Registry, byID map[string]interface{}) models.Submission {
	sys := reg.SystemFields()
	fields := []models.SubmissionField{
		{Key: sys.ReportID, Type: models.FieldKindHidden, Value: "rec42"},
		{Key: sys.Year, Type: models.FieldKindHidden, Value: "2025"},
	}
	for id, v := range byID {
		fields = append(fields, models.SubmissionField{Key: reg.QuestionKeys(id).He, Value: v})
	}
	return models.Submission{FormName: "annual report", Fields: fields}
}

// englishSubmission moves every translatable key into the English namespace.
func englishSubmission(reg *registry.Registry, sub models.Submission) models.Submission {
	reverse := map[string]string{}
	for en, he := range reg.Document().KeyTranslations {
		reverse[he] = en
	}
	out := sub
	out.Fields = make([]models.SubmissionField, len(sub.Fields))
	for i, f := range sub.Fields {
		if en, ok := reverse[f.Key]; ok {
			f.Key = en
		}
		out.Fields[i] = f
	}
	return out
}

func countTemplate(reqs []models.DocumentRequirement, id string) int {
	n := 0
	for _, r := range reqs {
		if r.TemplateID == id {
			n++
		}
	}
	return n
}

// fullSubmission answers every mapping so that it fires.
func fullSubmission(reg *registry.Registry) models.Submission {
	byID := map[string]interface{}{}
	for _, q := range reg.Document().Questions {
		byID[q.ID] = "ערך לדוגמה"
	}
	for _, m := range reg.Mappings() {
		switch m.Trigger.Kind {
		case registry.TriggerAnswerYes:
			byID[m.ID] = "כן"
		case registry.TriggerAnswerNo:
			byID[m.ID] = "לא"
		case registry.TriggerAnswerEquals:
			byID[m.ID] = m.Trigger.Value
		default:
			byID[m.ID] = "פריט א\nפריט ב"
		}
	}
	byID["personal_name"] = "דנה כהן"
	byID["family_spouse_name"] = "יוסי כהן"
	byID["investments_foreign_return_filed"] = "לא"
	byID["pension_withdrawal_type"] = []interface{}{"פיצויי פיטורין", "אחר"}
	byID["nii_spouse_payment_type"] = "נכות\nדמי לידה\nאבטלה"
	return submission(reg, byID)
}

// ==========================
// Property Tests
// ==========================

func TestEngine_NoLeakedPlaceholders(t *testing.T) {
	e := createTestEngine(t, Options{})
	res := e.Run(fullSubmission(e.Registry()), RunOptions{})

	require.NotEmpty(t, res.Requirements)
	assert.Empty(t, res.Warnings)
	for _, r := range res.Requirements {
		assert.Empty(t, render.Leaked(r.TitleHe), "%s: %s", r.TemplateID, r.TitleHe)
		assert.Empty(t, render.Leaked(r.TitleEn), "%s: %s", r.TemplateID, r.TitleEn)
		assert.Equal(t, models.StatusRequiredMissing, r.Status)
	}

	seen := map[string]bool{}
	for _, r := range res.Requirements {
		assert.False(t, seen[r.DocumentKey], "duplicate key %s", r.DocumentKey)
		seen[r.DocumentKey] = true
		assert.True(t, strings.HasPrefix(r.DocumentKey, "rec42_"), r.DocumentKey)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := createTestEngine(t, Options{})
	sub := fullSubmission(e.Registry())

	first := e.Run(sub, RunOptions{})
	second := e.Run(sub, RunOptions{})

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Requirements, second.Requirements)
	assert.Equal(t, first.System, second.System)
}

func TestEngine_SingletonInvariant(t *testing.T) {
	e := createTestEngine(t, Options{})
	sub := submission(e.Registry(), map[string]interface{}{
		"family_marital_change":  "כן",
		"children_have_children": "כן",
		"children_new_child":     "כן",
	})

	res := e.Run(sub, RunOptions{})

	require.Len(t, res.Requirements, 1)
	assert.Equal(t, "ספח ת״ז מעודכן", res.Requirements[0].TitleHe)
	assert.Equal(t, "rec42_ID_Appendix_client_static", res.Requirements[0].DocumentKey)
}

func TestEngine_ForeignIncomeExclusive(t *testing.T) {
	e := createTestEngine(t, Options{})

	tests := []struct {
		name         string
		filed        string
		wantReturn   int
		wantEvidence int
	}{
		{name: "return filed", filed: "כן", wantReturn: 1, wantEvidence: 0},
		{name: "return not filed", filed: "לא", wantReturn: 0, wantEvidence: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := submission(e.Registry(), map[string]interface{}{
				"investments_foreign_return_filed": tt.filed,
				"investments_foreign_income_types": []interface{}{"dividends", "royalties"},
			})
			res := e.Run(sub, RunOptions{})

			assert.Equal(t, tt.wantReturn, countTemplate(res.Requirements, "foreign_tax_return"))
			assert.Equal(t, tt.wantEvidence, countTemplate(res.Requirements, "foreign_income_evidence"))
		})
	}
}

func TestEngine_SecuritiesDedup(t *testing.T) {
	e := createTestEngine(t, Options{})
	sub := submission(e.Registry(), map[string]interface{}{
		"investments_securities_institutions": "בנק הפועלים",
		"investments_deposits_banks":          "הפועלים\nלאומי",
	})

	res := e.Run(sub, RunOptions{})

	require.Equal(t, 2, countTemplate(res.Requirements, "form_867"))
	assert.Equal(t, "rec42_Form_867_client_בנק_הפועלים", res.Requirements[0].DocumentKey)
	assert.Equal(t, "rec42_Form_867_client_לאומי", res.Requirements[1].DocumentKey)
}

func TestEngine_PerItemFanOut(t *testing.T) {
	e := createTestEngine(t, Options{})
	sub := submission(e.Registry(), map[string]interface{}{
		"employment_employers_list": "Employer A\nEmployer B",
	})

	res := e.Run(sub, RunOptions{Year: "2024"})

	require.Len(t, res.Requirements, 2)
	assert.Equal(t, "rec42_Form_106_client_employer_a", res.Requirements[0].DocumentKey)
	assert.Equal(t, "rec42_Form_106_client_employer_b", res.Requirements[1].DocumentKey)
	assert.Contains(t, res.Requirements[0].TitleHe, "<b>2024</b>")
	assert.Equal(t, "2024", res.System.Year)
	assert.Equal(t, "rec42", res.Requirements[0].ReportID)
}

func TestEngine_EnglishFormMatchesHebrewForm(t *testing.T) {
	e := createTestEngine(t, Options{})
	he := fullSubmission(e.Registry())
	en := englishSubmission(e.Registry(), he)

	heRes := e.Run(he, RunOptions{})
	enRes := e.Run(en, RunOptions{})

	assert.Equal(t, answers.LanguageHe, heRes.System.Language)
	assert.Equal(t, answers.LanguageEn, enRes.System.Language)
	assert.Equal(t, heRes.Requirements, enRes.Requirements)
}

// ==========================
// Degradation Tests
// ==========================

func TestEngine_EmptySubmission(t *testing.T) {
	e := createTestEngine(t, Options{})

	res := e.Run(models.Submission{}, RunOptions{})

	assert.NotEmpty(t, res.RunID)
	assert.NotEmpty(t, res.RegistryVersion)
	assert.Empty(t, res.Requirements)
	assert.NotNil(t, res.Requirements)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.Degraded)
}

func TestEngine_BusinessRulesDisabled(t *testing.T) {
	e := createTestEngine(t, Options{DisableBusinessRules: true})
	sub := submission(e.Registry(), map[string]interface{}{
		"investments_securities_institutions": "בנק הפועלים",
		"investments_deposits_banks":          "הפועלים",
	})

	res := e.Run(sub, RunOptions{})

	assert.True(t, res.Degraded)
	assert.Equal(t, 2, countTemplate(res.Requirements, "form_867"))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, models.WarningBusinessRulesFallback, res.Warnings[0].Code)
}

func TestEngine_RecoversFromPanic(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	e := &Engine{
		reg:        reg,
		normalizer: answers.NewNormalizer(reg),
		deriver:    derive.New(nil, nil),
		logger:     logger.NewTestLogger(t),
	}

	var res Result
	assert.NotPanics(t, func() {
		res = e.Run(submission(reg, map[string]interface{}{"military_discharge": "כן"}), RunOptions{})
	})
	assert.True(t, res.Degraded)
	assert.NotNil(t, res.Requirements)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, models.WarningEnginePanic, res.Warnings[0].Code)
}

// ==========================
// Key and Grouping Tests
// ==========================

func TestNormalizeForKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  Employer A ", want: "employer_a"},
		{in: "בנק הפועלים בע\"מ", want: "בנק_הפועלים_בעמ"},
		{in: "A&B (Israel) Ltd.", want: "ab_israel_ltd"},
		{in: "", want: ""},
		{in: strings.Repeat("x", 60), want: strings.Repeat("x", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeForKey(tt.in))
		})
	}
}

func TestAssignKeys_Collisions(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	reqs := []models.DocumentRequirement{
		{TemplateID: "insurance_deposit", Person: models.PersonClient, Item: "מגדל"},
		{TemplateID: "insurance_deposit", Person: models.PersonClient, Item: "מגדל"},
		{TemplateID: "alimony_judgment", Person: models.PersonClient},
	}
	AssignKeys(reg, "rec1", reqs)

	assert.Equal(t, "rec1_Insurance_Tax_Cert_client_מגדל", reqs[0].DocumentKey)
	assert.Equal(t, "rec1_Insurance_Tax_Cert_client_מגדל_1", reqs[1].DocumentKey)
	assert.Equal(t, "rec1_Alimony_Judgment_client_static", reqs[2].DocumentKey)
}

func TestGroupByCategory(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	reqs := []models.DocumentRequirement{
		{DocumentKey: "k1", TemplateID: "form_867", Category: "investments", Person: models.PersonClient, TitleHe: "טופס <b>867</b>", TitleEn: "Form <b>867</b>"},
		{DocumentKey: "k2", TemplateID: "form_106_spouse", Category: "employment", Person: models.PersonSpouse, TitleHe: "טופס 106", TitleEn: "Form 106"},
		{DocumentKey: "k3", TemplateID: "form_106", Category: "employment", Person: models.PersonClient, TitleHe: "טופס 106", TitleEn: "Form 106"},
		{DocumentKey: "k4", TemplateID: "legacy", Category: "retired_category", Person: models.PersonClient, TitleHe: "ישן", TitleEn: "Legacy"},
	}

	groups := GroupByCategory(reg, reqs, "en", render.ModePlain)

	require.Len(t, groups, 3)
	assert.Equal(t, "employment", groups[0].CategoryID)
	assert.Equal(t, "Employment (Form 106)", groups[0].Name)
	assert.Len(t, groups[0].Client, 1)
	assert.Len(t, groups[0].Spouse, 1)

	assert.Equal(t, "investments", groups[1].CategoryID)
	assert.Equal(t, "Form 867", groups[1].Client[0].Title)

	assert.Equal(t, "other", groups[2].CategoryID)
	assert.Equal(t, "k4", groups[2].Client[0].DocumentKey)

	html := GroupByCategory(reg, reqs[:1], "he", render.ModeHTML)
	require.Len(t, html, 1)
	assert.Equal(t, "טופס <b>867</b>", html[0].Client[0].Title)
	assert.Equal(t, "ניירות ערך", html[0].Name)
}
