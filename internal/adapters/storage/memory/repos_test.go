package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"dental-inspections/internal/domain/drafts"
	"dental-inspections/internal/domain/submissions"
	"dental-inspections/internal/domain/violations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftRepo_MergeAndStatus(t *testing.T) {
	repo := NewDraftRepo()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	d := drafts.Draft{ID: "d-1", VisitID: "v-1", Status: drafts.StatusOpen, Sections: map[drafts.Section]json.RawMessage{}, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, repo.Create(ctx, d))

	dup := d
	dup.ID = "d-2"
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrConflict, "one open draft per visit")

	got, err := repo.MergeSections(ctx, "d-1", map[drafts.Section]json.RawMessage{
		drafts.SectionGeneral: json.RawMessage(`{"a":1}`),
		drafts.SectionLab:     json.RawMessage(`{"b":2}`),
	}, "insp-1", at.Add(time.Minute), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "insp-1", got.UpdatedBy)

	// el llamador no puede mutar lo guardado
	got.Sections[drafts.SectionGeneral] = json.RawMessage(`{"hacked":true}`)
	again, err := repo.GetByID(ctx, "d-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(again.Sections[drafts.SectionGeneral]))

	// versión esperada vieja: no escribe
	_, err = repo.MergeSections(ctx, "d-1", map[drafts.Section]json.RawMessage{drafts.SectionLab: json.RawMessage(`{"c":3}`)}, "insp-2", at, 7)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err = repo.MergeSections(ctx, "d-1", map[drafts.Section]json.RawMessage{drafts.SectionLab: json.RawMessage(`{"c":3}`)}, "insp-2", at, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	locked, err := repo.SetStatus(ctx, "d-1", drafts.StatusOpen, drafts.StatusSubmitted, at)
	require.NoError(t, err)
	assert.Equal(t, drafts.StatusSubmitted, locked.Status)
	assert.JSONEq(t, `{"c":3}`, string(locked.Sections[drafts.SectionLab]))
	_, err = repo.SetStatus(ctx, "d-1", drafts.StatusOpen, drafts.StatusSubmitted, at)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.MergeSections(ctx, "d-1", map[drafts.Section]json.RawMessage{drafts.SectionLab: json.RawMessage(`{}`)}, "insp-1", at, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	byVisit, err := repo.GetByVisit(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, drafts.StatusSubmitted, byVisit.Status)
}

func TestSubmissionRepo_SequenceIsPerYearAndConcurrent(t *testing.T) {
	repo := NewSubmissionRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	seen := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.NextSequence(ctx, 2026)
			assert.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	uniq := map[int64]bool{}
	for n := range seen {
		uniq[n] = true
	}
	assert.Len(t, uniq, 50)
	assert.True(t, uniq[1] && uniq[50])

	n, err := repo.NextSequence(ctx, 2027)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	s := submissions.Submission{ID: "s-1", ReferenceNumber: submissions.ReferenceNumber(2026, 1)}
	require.NoError(t, repo.Create(ctx, s))
	s.ID = "s-2"
	assert.ErrorIs(t, repo.Create(ctx, s), ErrConflict)
}

func TestViolationRepo_ListOrderAndVoid(t *testing.T) {
	repo := NewViolationRepo()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, violations.Report{ID: "r-2", VisitID: "v-1", Kind: violations.KindMedicalWaste, Status: violations.StatusActive, IssuedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, violations.Report{ID: "r-1", VisitID: "v-1", Kind: violations.KindAdvertising, Status: violations.StatusActive, IssuedAt: base}))
	require.NoError(t, repo.Create(ctx, violations.Report{ID: "r-3", VisitID: "v-2", Kind: violations.KindAdvertising, Status: violations.StatusActive, IssuedAt: base}))

	list, err := repo.ListByVisit(ctx, "v-1", violations.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r-1", list[0].ID)

	require.NoError(t, repo.Void(ctx, "r-1", "sup-1", base))
	require.NoError(t, repo.Void(ctx, "r-1", "sup-2", base.Add(time.Hour)))
	rep, _ := repo.GetByID(ctx, "r-1")
	assert.Equal(t, "sup-1", rep.VoidedBy)

	list, _ = repo.ListByVisit(ctx, "v-1", violations.ListFilter{})
	assert.Len(t, list, 1)
	list, _ = repo.ListByVisit(ctx, "v-1", violations.ListFilter{IncludeVoided: true, Kinds: []violations.Kind{violations.KindAdvertising}})
	require.Len(t, list, 1)
	assert.Equal(t, "r-1", list[0].ID)
}
