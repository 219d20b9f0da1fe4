// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/internal/intake/render"
	"annual-reports-workers/internal/intake/source"
	"annual-reports-workers/pkg/registry"

	deriverequirements "annual-reports-workers/internal/workers/documents/derive-requirements"
	grouprequirements "annual-reports-workers/internal/workers/documents/group-requirements"
)

// ==========================
// Test Helper Functions
// ==========================

// loadStore publishes the default registry to a file and loads it the way
// the worker manager does.
func loadStore(t *testing.T) (*source.Store, *registry.Registry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, registry.DefaultJSON(), 0o600))

	store := source.NewStore(source.File{Path: path}, logger.NewTestLogger(t))
	require.NoError(t, store.Refresh(context.Background()))
	reg, err := store.Snapshot()
	require.NoError(t, err)
	return store, reg
}

type field struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// tallyPayload wraps fields the way the form provider's webhook delivers them.
func tallyPayload(t *testing.T, fields []field) string {
	t.Helper()
	payload := map[string]interface{}{
		"body": map[string]interface{}{
			"eventType": "FORM_RESPONSE",
			"data": map[string]interface{}{
				"formName":  "דוח שנתי 2025",
				"createdAt": "2026-03-01T10:00:00.000Z",
				"fields":    fields,
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

// answers picks the Hebrew or English key of each question.
func answers(reg *registry.Registry, english bool, byID map[string]interface{}) []field {
	sys := reg.SystemFields()
	hidden := func(key string) string {
		if !english {
			return key
		}
		for en, he := range reg.Document().KeyTranslations {
			if he == key {
				return en
			}
		}
		return key
	}

	out := []field{
		{Key: hidden(sys.ReportID), Type: "HIDDEN_FIELDS", Value: "recE2E"},
		{Key: hidden(sys.Year), Type: "HIDDEN_FIELDS", Value: "2025"},
		{Key: hidden(sys.FullName), Type: "HIDDEN_FIELDS", Value: "דנה כהן"},
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		keys := reg.QuestionKeys(id)
		key := keys.He
		if english {
			key = keys.En
		}
		out = append(out, field{Key: key, Type: "INPUT_TEXT", Value: byID[id]})
	}
	return out
}

func derive(t *testing.T, h *deriverequirements.Handler, payload string) *deriverequirements.Output {
	t.Helper()
	var input deriverequirements.Input
	require.NoError(t, json.Unmarshal([]byte(payload), &input))
	output, err := h.Execute(context.Background(), &input)
	require.NoError(t, err)
	return output
}

func documentKeys(out *deriverequirements.Output) []string {
	keys := make([]string, 0, len(out.Requirements))
	for _, r := range out.Requirements {
		keys = append(keys, r.DocumentKey)
	}
	return keys
}

// ==========================
// End-to-End Scenarios
// ==========================

func TestE2E_DeriveAndGroup(t *testing.T) {
	store, reg := loadStore(t)
	deriveHandler := deriverequirements.NewHandler(deriverequirements.NewConfig(nil), store, nil, logger.NewTestLogger(t))
	groupHandler := grouprequirements.NewHandler(grouprequirements.NewConfig(nil), store, logger.NewTestLogger(t))

	hebrew := map[string]interface{}{
		"personal_name":                       "דנה כהן",
		"family_spouse_name":                  "יוסי כהן",
		"employment_employers_list":           "אלביט\nרפאל",
		"employment_spouse_employers_list":    "אינטל",
		"investments_securities_institutions": "בנק הפועלים\nלאומי",
		"investments_deposits_banks":          "הפועלים",
		"family_marital_change":               "כן",
		"children_have_children":              "כן",
		"insurance_pension_companies":         "מגדל\nהראל",
	}

	out := derive(t, deriveHandler, tallyPayload(t, answers(reg, false, hebrew)))

	assert.False(t, out.Degraded)
	assert.Equal(t, "recE2E", out.SystemFields.ReportID)
	assert.Equal(t, reg.Version(), out.RegistryVersion)
	assert.Equal(t, len(out.Requirements), out.RequirementCount)

	keys := documentKeys(out)
	assert.Contains(t, keys, "recE2E_Form_106_client_אלביט")
	assert.Contains(t, keys, "recE2E_Form_106_Spouse_spouse_אינטל")
	assert.Contains(t, keys, "recE2E_ID_Appendix_client_static")

	// "בנק הפועלים" and "הפועלים" are one issuer.
	form867 := 0
	for _, r := range out.Requirements {
		if r.TemplateID == "form_867" {
			form867++
		}
		assert.Empty(t, render.Leaked(r.TitleHe), r.DocumentKey)
		assert.Empty(t, render.Leaked(r.TitleEn), r.DocumentKey)
	}
	assert.Equal(t, 2, form867)

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}

	grouped, err := groupHandler.Execute(context.Background(), &grouprequirements.Input{
		Requirements: out.Requirements,
		Language:     "en",
		Format:       "plain",
	})
	require.NoError(t, err)
	assert.Equal(t, out.RequirementCount, grouped.Total)

	total := 0
	for _, g := range grouped.Groups {
		total += len(g.Client) + len(g.Spouse)
		for _, r := range append(g.Client, g.Spouse...) {
			assert.NotContains(t, r.Title, "<b>")
		}
	}
	assert.Equal(t, out.RequirementCount, total)
}

func TestE2E_EnglishNamespaceMatchesHebrew(t *testing.T) {
	store, reg := loadStore(t)
	h := deriverequirements.NewHandler(deriverequirements.NewConfig(nil), store, nil, logger.NewTestLogger(t))

	he := map[string]interface{}{
		"personal_name":             "דנה כהן",
		"pension_withdrawal":        "כן",
		"pension_withdrawal_type":   []interface{}{"פיצויי פיטורין"},
		"nii_spouse_payments":       "כן",
		"family_spouse_name":        "יוסי כהן",
		"nii_spouse_payment_type":   "נכות\nמילואים",
		"military_discharge":        "כן",
		"employment_employers_list": "Acme Ltd",
	}
	en := map[string]interface{}{
		"personal_name":             "דנה כהן",
		"pension_withdrawal":        "Yes",
		"pension_withdrawal_type":   []interface{}{"Severance pay"},
		"nii_spouse_payments":       "Yes",
		"family_spouse_name":        "יוסי כהן",
		"nii_spouse_payment_type":   "Disability\nReserve duty",
		"military_discharge":        "Yes",
		"employment_employers_list": "Acme Ltd",
	}

	heOut := derive(t, h, tallyPayload(t, answers(reg, false, he)))
	enOut := derive(t, h, tallyPayload(t, answers(reg, true, en)))

	require.NotEmpty(t, heOut.Requirements)
	assert.Equal(t, documentKeys(heOut), documentKeys(enOut))
	for i := range heOut.Requirements {
		assert.Equal(t, heOut.Requirements[i].TitleHe, enOut.Requirements[i].TitleHe)
	}
	assert.Equal(t, "he", string(heOut.SystemFields.Language))
	assert.Equal(t, "en", string(enOut.SystemFields.Language))
}

func TestE2E_MalformedPayloadCompletes(t *testing.T) {
	store, _ := loadStore(t)
	h := deriverequirements.NewHandler(deriverequirements.NewConfig(nil), store, nil, logger.NewTestLogger(t))

	out := derive(t, h, `{"body":{"eventType":"PING"}}`)

	assert.True(t, out.Degraded)
	assert.Empty(t, out.Requirements)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "SUBMISSION_MALFORMED", string(out.Warnings[0].Code))
}
