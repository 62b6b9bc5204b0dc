package printing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"dental-inspections/internal/domain/clinics"
	"dental-inspections/internal/domain/submissions"
	"dental-inspections/internal/domain/violations"
	"dental-inspections/internal/domain/visits"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	rows := Flatten(json.RawMessage(`{
		"has_autoclave": true,
		"autoclave": {"brand": "W&H", "last_test": "2026-02-10", "cycles": 12},
		"staff_names": ["Ali", "Sara"],
		"notes": "",
		"broken": false,
		"extra": null
	}`))

	got := map[string]string{}
	var order []string
	for _, r := range rows {
		got[r.Label] = r.Value
		order = append(order, r.Label)
	}

	assert.Equal(t, "W&H", got["autoclave.brand"])
	assert.Equal(t, "12", got["autoclave.cycles"])
	assert.Equal(t, "نعم", got["has autoclave"])
	assert.Equal(t, "لا", got["broken"])
	assert.Equal(t, "Ali، Sara", got["staff names"])
	assert.Equal(t, "-", got["notes"])
	assert.Equal(t, "-", got["extra"])
	assert.Equal(t, "autoclave.brand", order[0], "keys are sorted")

	assert.Nil(t, Flatten(json.RawMessage(`[1,2]`)))
	assert.Nil(t, Flatten(json.RawMessage(`not json`)))
}

func sampleSubmission() submissions.Submission {
	return submissions.Submission{
		ID:              "s-1",
		ReferenceNumber: "MOH-DENT-2026-000007",
		DraftID:         "d-1",
		VisitID:         "v-1",
		ClinicID:        "c-1",
		VisitType:       string(visits.TypeInspection),
		Sections: map[string]json.RawMessage{
			"general":       json.RawMessage(`{"clinic_phone":"22223333","<script>":"x"}`),
			"sterilization": json.RawMessage(`{"autoclave_ok":true}`),
			"signatures": json.RawMessage(`{
				"inspector":{"image":"data:image/png;base64,iVBORw0KGgo=","signer_name":"Ahmad"},
				"clinic_manager":{"image":"javascript:alert(1)","signer_name":"Evil"}
			}`),
		},
		Violations: []submissions.ViolationSnapshot{
			{ID: "r-1", KindName: "سوء التخلص من النفايات الطبية", ActionName: "غرامة", Articles: []string{"12", "14"}},
		},
		SubmittedBy: "insp-1",
		SubmittedAt: time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC),
	}
}

func TestSubmissionDocument(t *testing.T) {
	clinic := clinics.Clinic{ID: "c-1", Name: "Smile Dental", LicenseNumber: "L-100", Governorate: clinics.GovernorateHawalli}
	doc := SubmissionDocument(sampleSubmission(), clinic, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))

	assert.Equal(t, "حولي", doc.Governorate)
	// 22:30 UTC ya es el día siguiente en Kuwait
	assert.Equal(t, "2026-03-02", doc.Date)

	require.Len(t, doc.Tables, 2)
	assert.Equal(t, "البيانات العامة", doc.Tables[0].Title)
	assert.Equal(t, "التعقيم", doc.Tables[1].Title)

	require.Len(t, doc.Violations, 1)
	assert.Equal(t, "12، 14", doc.Violations[0].Articles)

	require.Len(t, doc.Signatures, 4)
	assert.True(t, doc.Signatures[0].Present)
	assert.Equal(t, "Ahmad", doc.Signatures[0].SignerName)
	assert.False(t, doc.Signatures[1].Present, "only png data urls are embedded")
}

func TestRenderer_SubmissionEscapes(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	doc := SubmissionDocument(sampleSubmission(), clinics.Clinic{Name: "Smile & Co"}, time.Now())
	var buf bytes.Buffer
	require.NoError(t, r.Submission(&buf, doc))
	html := buf.String()

	assert.Contains(t, html, `dir="rtl"`)
	assert.Contains(t, html, "MOH-DENT-2026-000007")
	assert.Contains(t, html, "Smile &amp; Co")
	assert.Contains(t, html, `src="data:image/png;base64,iVBORw0KGgo="`)
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "javascript:")
}

type stubSources struct {
	rep   violations.Report
	visit visits.Visit
}

func (s stubSources) GetByID(ctx context.Context, visitID, id string) (violations.Report, error) {
	if id != s.rep.ID || visitID != s.rep.VisitID {
		return violations.Report{}, errors.New("not found")
	}
	return s.rep, nil
}

type stubVisits map[string]visits.Visit

func (v stubVisits) GetByID(ctx context.Context, id string) (visits.Visit, error) {
	x, ok := v[id]
	if !ok {
		return visits.Visit{}, errors.New("not found")
	}
	return x, nil
}

func TestService_RenderViolation(t *testing.T) {
	rep := violations.Report{
		ID:       "r-1",
		VisitID:  "v-1",
		Kind:     violations.KindAdvertising,
		Action:   violations.ActionWarning,
		IssuedBy: "insp-1",
		Status:   violations.StatusVoided,
	}
	svc, err := NewService(Sources{
		Violations: stubSources{rep: rep},
		Visits:     stubVisits{"v-1": {ID: "v-1", ClinicID: "c-1", Type: visits.TypeComplaint}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.RenderViolation(context.Background(), &buf, "v-1", "r-1"))
	html := buf.String()
	assert.Contains(t, html, "إعلان مخالف")
	assert.Contains(t, html, "إنذار")
	assert.True(t, strings.Contains(html, "VOID"))

	err = svc.RenderViolation(context.Background(), &buf, "v-2", "r-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
