package rules

import (
	"errors"
	"testing"

	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/intake/answers"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestRules(t *testing.T) (*BusinessRules, *registry.Registry) {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return NewBusinessRules(reg, logger.NewTestLogger(t)), reg
}

func req(templateID string, person models.Person, item string, details map[string]string) models.DocumentRequirement {
	return models.DocumentRequirement{
		TemplateID: templateID,
		Person:     person,
		Item:       item,
		Details:    details,
		TitleHe:    templateID + " " + item,
		TitleEn:    templateID + " " + item,
		Status:     models.StatusRequiredMissing,
	}
}

func templateIDs(reqs []models.DocumentRequirement) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.TemplateID)
	}
	return out
}

type failingProcessor struct{ err error }

func (f failingProcessor) Process([]models.DocumentRequirement, answers.Map) ([]models.DocumentRequirement, error) {
	return nil, f.err
}

type panickingProcessor struct{}

func (panickingProcessor) Process([]models.DocumentRequirement, answers.Map) ([]models.DocumentRequirement, error) {
	panic("index out of range")
}

// ==========================
// Rule Tests
// ==========================

func TestBusinessRules_IdentityDedup(t *testing.T) {
	p, _ := createTestRules(t)

	reqs := []models.DocumentRequirement{
		req("form_106", models.PersonClient, "Intel", map[string]string{"employer": "Intel"}),
		req("form_106", models.PersonClient, "intel ", map[string]string{"employer": "intel "}),
		req("form_106", models.PersonClient, "Google", map[string]string{"employer": "Google"}),
	}
	out, err := p.Process(reqs, answers.Map{})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "Intel", out[0].Item)
	assert.Equal(t, "Google", out[1].Item)
}

func TestBusinessRules_SecuritiesIssuerDedup(t *testing.T) {
	p, _ := createTestRules(t)

	reqs := []models.DocumentRequirement{
		req("form_867", models.PersonClient, "בנק הפועלים", map[string]string{"institution_name": "בנק הפועלים"}),
		req("form_867", models.PersonClient, "הפועלים", map[string]string{"institution_name": "הפועלים"}),
		req("form_867", models.PersonClient, "Investment House  Meitav", map[string]string{"institution_name": "Investment House  Meitav"}),
		req("form_867", models.PersonClient, "meitav", map[string]string{"institution_name": "meitav"}),
		req("form_867", models.PersonSpouse, "הפועלים", map[string]string{"institution_name": "הפועלים"}),
		req("form_867", models.PersonClient, "Bank Investment House Meitav", map[string]string{"institution_name": "Bank Investment House Meitav"}),
		req("form_106", models.PersonClient, "הפועלים", map[string]string{"employer": "הפועלים"}),
	}
	out, err := p.Process(reqs, answers.Map{})
	require.NoError(t, err)

	// One certificate per issuer, whoever holds the account.
	require.Len(t, out, 3)
	assert.Equal(t, "בנק הפועלים", out[0].Item)
	assert.Equal(t, models.PersonClient, out[0].Person)
	assert.Equal(t, "Investment House  Meitav", out[1].Item)
	assert.Equal(t, "form_106", out[2].TemplateID)
}

func TestBusinessRules_IssuerFromTitle(t *testing.T) {
	p, _ := createTestRules(t)

	a := req("form_867", models.PersonClient, "", nil)
	a.TitleHe = "טופס 867 לשנת <b>2025</b> – <b>בנק לאומי</b>"
	b := req("form_867", models.PersonClient, "", map[string]string{"institution_name": "לאומי"})
	b.TitleHe = "טופס 867 לשנת <b>2025</b> – <b>לאומי</b>"

	out, err := p.Process([]models.DocumentRequirement{a, b}, answers.Map{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestBusinessRules_SingletonConsolidation(t *testing.T) {
	p, _ := createTestRules(t)

	reqs := []models.DocumentRequirement{
		req("id_appendix", models.PersonClient, "", map[string]string{"status_change_date": "01/2025"}),
		req("form_106", models.PersonClient, "Intel", map[string]string{"employer": "Intel"}),
		req("child_id_appendix", models.PersonClient, "", nil),
		req("id_appendix_with_children", models.PersonClient, "", nil),
	}
	out, err := p.Process(reqs, answers.Map{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id_appendix", "form_106"}, templateIDs(out))
	assert.Equal(t, "ספח ת״ז מעודכן", out[0].TitleHe)
	assert.Equal(t, "Updated ID Appendix", out[0].TitleEn)
	assert.Empty(t, out[0].Details)
}

func TestBusinessRules_SingleSingletonKeepsTitle(t *testing.T) {
	p, _ := createTestRules(t)

	reqs := []models.DocumentRequirement{req("child_id_appendix", models.PersonClient, "", nil)}
	out, err := p.Process(reqs, answers.Map{})
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, "child_id_appendix ", out[0].TitleHe)
}

func TestBusinessRules_ForeignIncomeSuppression(t *testing.T) {
	p, reg := createTestRules(t)
	filedKey := reg.QuestionKeys("investments_foreign_return_filed").He

	reqs := []models.DocumentRequirement{
		req("foreign_income_evidence", models.PersonClient, "dividends", map[string]string{"income_type": "dividends"}),
		req("foreign_income_evidence", models.PersonClient, "royalties", map[string]string{"income_type": "royalties"}),
	}

	tests := []struct {
		name   string
		answer answers.Map
		want   int
	}{
		{name: "return filed", answer: answers.Map{filedKey: answers.Scalar("כן")}, want: 0},
		{name: "return not filed", answer: answers.Map{filedKey: answers.Scalar("לא")}, want: 2},
		{name: "question absent", answer: answers.Map{}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Process(reqs, tt.answer)
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestNormalizeIssuer(t *testing.T) {
	prefixes := []string{"בנק ", "Bank ", "בית השקעות ", "Investment House "}

	tests := []struct {
		in   string
		want string
	}{
		{in: "בנק הפועלים", want: "הפועלים"},
		{in: "  BANK   Leumi ", want: "leumi"},
		{in: "בית השקעות  מיטב", want: "מיטב"},
		{in: "Bankhapoalim", want: "bankhapoalim"},
		{in: "Bank Investment House Meitav", want: "meitav"},
		{in: "בנק בית השקעות מיטב", want: "מיטב"},
		{in: "הפועלים", want: "הפועלים"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIssuer(tt.in, prefixes))
		})
	}
}

// ==========================
// Fallback Tests
// ==========================

func TestApply(t *testing.T) {
	p, _ := createTestRules(t)

	reqs := []models.DocumentRequirement{
		req("form_867", models.PersonClient, "בנק הפועלים", map[string]string{"institution_name": "בנק הפועלים"}),
		req("form_867", models.PersonClient, "הפועלים", map[string]string{"institution_name": "הפועלים"}),
		req("form_867", models.PersonClient, "הפועלים", map[string]string{"institution_name": "הפועלים"}),
	}

	tests := []struct {
		name         string
		processor    Processor
		wantLen      int
		wantDegraded bool
	}{
		{name: "business rules", processor: p, wantLen: 1},
		{name: "disabled", processor: nil, wantLen: 2, wantDegraded: true},
		{name: "failing", processor: failingProcessor{err: errors.New("boom")}, wantLen: 2, wantDegraded: true},
		{name: "panicking", processor: panickingProcessor{}, wantLen: 2, wantDegraded: true},
		{name: "unconfigured", processor: &BusinessRules{}, wantLen: 2, wantDegraded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Apply(tt.processor, reqs, answers.Map{}, logger.NewTestLogger(t))

			assert.Len(t, out.Requirements, tt.wantLen)
			assert.Equal(t, tt.wantDegraded, out.Degraded)
			if tt.wantDegraded {
				require.Len(t, out.Warnings, 1)
				assert.Equal(t, models.WarningBusinessRulesFallback, out.Warnings[0].Code)
			} else {
				assert.Empty(t, out.Warnings)
			}
		})
	}
}
