package printing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"dental-inspections/internal/domain/clinics"
	"dental-inspections/internal/domain/drafts"
	"dental-inspections/internal/domain/signatures"
	"dental-inspections/internal/domain/submissions"
	"dental-inspections/internal/domain/violations"
	"dental-inspections/internal/domain/visits"
)

// Kuwait no tiene horario de verano.
var kuwait = time.FixedZone("AST", 3*60*60)

type Header struct {
	Title       string
	TitleEN     string
	Reference   string
	ClinicName  string
	License     string
	Governorate string
	Area        string
	VisitType   string
	Date        string
	Inspector   string
}

type Row struct {
	Label string
	Value string
}

type Table struct {
	Title string
	Rows  []Row
}

type SignatureBlock struct {
	Label      string
	SignerName string
	Image      template.URL
	Present    bool
}

type ViolationRow struct {
	N           int
	Kind        string
	Description string
	Articles    string
	Action      string
	IssuedAt    string
}

type SubmissionDoc struct {
	Header
	Tables      []Table
	Violations  []ViolationRow
	Signatures  []SignatureBlock
	GeneratedAt string
}

type ViolationDoc struct {
	Header
	Kind        string
	Description string
	Articles    string
	Action      string
	IssuedAt    string
	IssuedBy    string
	Voided      bool
	GeneratedAt string
}

func clinicHeader(c clinics.Clinic) Header {
	return Header{
		ClinicName:  c.Name,
		License:     c.LicenseNumber,
		Governorate: c.Governorate.ArabicName(),
		Area:        c.Area,
	}
}

// SubmissionDocument arma el documento oficial de una inspección archivada.
func SubmissionDocument(sub submissions.Submission, clinic clinics.Clinic, now time.Time) SubmissionDoc {
	h := clinicHeader(clinic)
	h.Title = "تقرير التفتيش الصحي على العيادات السنية"
	h.TitleEN = "Dental Clinic Health Inspection Report"
	h.Reference = sub.ReferenceNumber
	h.VisitType = visits.VisitType(sub.VisitType).ArabicName()
	h.Date = sub.SubmittedAt.In(kuwait).Format("2006-01-02")
	h.Inspector = sub.SubmittedBy

	doc := SubmissionDoc{Header: h, GeneratedAt: now.In(kuwait).Format("2006-01-02 15:04")}

	for _, sec := range drafts.Sections {
		if sec == drafts.SectionSignatures {
			continue
		}
		raw, ok := sub.Sections[string(sec)]
		if !ok {
			continue
		}
		rows := Flatten(raw)
		if len(rows) == 0 {
			continue
		}
		doc.Tables = append(doc.Tables, Table{Title: sec.ArabicName(), Rows: rows})
	}

	for i, v := range sub.Violations {
		doc.Violations = append(doc.Violations, ViolationRow{
			N:           i + 1,
			Kind:        v.KindName,
			Description: v.Description,
			Articles:    strings.Join(v.Articles, "، "),
			Action:      v.ActionName,
			IssuedAt:    v.IssuedAt.In(kuwait).Format("2006-01-02"),
		})
	}

	signed := signatures.Decode(sub.Sections[string(drafts.SectionSignatures)])
	for _, role := range signatures.Roles {
		e, ok := signed[role]
		block := SignatureBlock{Label: role.ArabicName()}
		if ok {
			block.SignerName = e.SignerName
			if img := safeImage(e.Image); img != "" {
				block.Image = img
				block.Present = true
			}
		}
		doc.Signatures = append(doc.Signatures, block)
	}
	return doc
}

// ViolationDocument arma el acta individual de una infracción.
func ViolationDocument(rep violations.Report, visit visits.Visit, clinic clinics.Clinic, now time.Time) ViolationDoc {
	h := clinicHeader(clinic)
	h.Title = "محضر مخالفة"
	h.TitleEN = "Violation Report"
	h.Reference = rep.ID
	h.VisitType = visit.Type.ArabicName()
	h.Date = visit.ScheduledFor.In(kuwait).Format("2006-01-02")
	h.Inspector = rep.IssuedBy

	return ViolationDoc{
		Header:      h,
		Kind:        rep.Kind.ArabicName(),
		Description: rep.Description,
		Articles:    strings.Join(rep.Articles, "، "),
		Action:      rep.Action.ArabicName(),
		IssuedAt:    rep.IssuedAt.In(kuwait).Format("2006-01-02 15:04"),
		IssuedBy:    rep.IssuedBy,
		Voided:      rep.Status == violations.StatusVoided,
		GeneratedAt: now.In(kuwait).Format("2006-01-02 15:04"),
	}
}

// safeImage solo deja pasar las data URL PNG que genera el procesado de firmas.
func safeImage(s string) template.URL {
	if !strings.HasPrefix(s, "data:image/png;base64,") {
		return ""
	}
	return template.URL(s)
}

// Flatten convierte una sección en filas clave/valor: objetos anidados con punto,
// arreglos unidos con coma, booleanos como نعم/لا.
func Flatten(raw json.RawMessage) []Row {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var rows []Row
	flattenInto(&rows, "", obj)
	return rows
}

func flattenInto(rows *[]Row, prefix string, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		label := k
		if prefix != "" {
			label = prefix + "." + k
		}
		if nested, ok := obj[k].(map[string]any); ok {
			flattenInto(rows, label, nested)
			continue
		}
		*rows = append(*rows, Row{Label: humanize(label), Value: formatValue(obj[k])})
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case bool:
		if x {
			return "نعم"
		}
		return "لا"
	case string:
		if strings.TrimSpace(x) == "" {
			return "-"
		}
		return x
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, "، ")
	case map[string]any:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func humanize(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
