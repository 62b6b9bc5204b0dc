package printing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"dental-inspections/internal/domain/clinics"
	"dental-inspections/internal/domain/submissions"
	"dental-inspections/internal/domain/violations"
	"dental-inspections/internal/domain/visits"
)

var ErrNotFound = errors.New("document not found")

type SubmissionSource interface {
	GetByID(ctx context.Context, id string) (submissions.Submission, error)
	GetByReference(ctx context.Context, ref string) (submissions.Submission, error)
}

type ViolationSource interface {
	GetByID(ctx context.Context, visitID, id string) (violations.Report, error)
}

type VisitSource interface {
	GetByID(ctx context.Context, id string) (visits.Visit, error)
}

type ClinicSource interface {
	GetByID(ctx context.Context, id string) (clinics.Clinic, error)
}

type Sources struct {
	Submissions SubmissionSource
	Violations  ViolationSource
	Visits      VisitSource
	Clinics     ClinicSource
}

type Service struct {
	src      Sources
	renderer *Renderer
	now      func() time.Time
}

func NewService(src Sources) (*Service, error) {
	r, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Service{src: src, renderer: r, now: time.Now}, nil
}

// Submission busca por ID o, si no existe, por número de referencia (lo usa el CLI).
func (s *Service) Submission(ctx context.Context, idOrRef string) (submissions.Submission, error) {
	sub, err := s.src.Submissions.GetByID(ctx, idOrRef)
	if err == nil {
		return sub, nil
	}
	sub, err = s.src.Submissions.GetByReference(ctx, idOrRef)
	if err != nil {
		return submissions.Submission{}, ErrNotFound
	}
	return sub, nil
}

func (s *Service) RenderSubmission(ctx context.Context, w io.Writer, sub submissions.Submission) error {
	clinic := s.clinic(ctx, sub.ClinicID)

	var buf bytes.Buffer
	if err := s.renderer.Submission(&buf, SubmissionDocument(sub, clinic, s.now())); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (s *Service) RenderViolation(ctx context.Context, w io.Writer, visitID, reportID string) error {
	rep, err := s.src.Violations.GetByID(ctx, visitID, reportID)
	if err != nil {
		return ErrNotFound
	}
	v, err := s.src.Visits.GetByID(ctx, rep.VisitID)
	if err != nil {
		return ErrNotFound
	}
	clinic := s.clinic(ctx, v.ClinicID)

	var buf bytes.Buffer
	if err := s.renderer.Violation(&buf, ViolationDocument(rep, v, clinic, s.now())); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// clinic: si la clínica no se encuentra se imprime igual, con los datos vacíos.
func (s *Service) clinic(ctx context.Context, id string) clinics.Clinic {
	if s.src.Clinics == nil {
		return clinics.Clinic{ID: id}
	}
	c, err := s.src.Clinics.GetByID(ctx, id)
	if err != nil {
		return clinics.Clinic{ID: id}
	}
	return c
}
