package violations

import "time"

type Kind string

const (
	KindUnlicensedPractice   Kind = "unlicensed_practice"
	KindExpiredLicense       Kind = "expired_license"
	KindSterilizationFailure Kind = "sterilization_failure"
	KindInfectionControl     Kind = "infection_control"
	KindRadiationSafety      Kind = "radiation_safety"
	KindMedicalWaste         Kind = "medical_waste"
	KindUnlicensedStaff      Kind = "unlicensed_staff"
	KindMissingRecords       Kind = "missing_records"
	KindAdvertising          Kind = "advertising"
	KindOther                Kind = "other"
)

var kindNames = map[Kind]string{
	KindUnlicensedPractice:   "مزاولة المهنة بدون ترخيص",
	KindExpiredLicense:       "ترخيص منتهي الصلاحية",
	KindSterilizationFailure: "مخالفة اشتراطات التعقيم",
	KindInfectionControl:     "مخالفة مكافحة العدوى",
	KindRadiationSafety:      "مخالفة الوقاية من الإشعاع",
	KindMedicalWaste:         "سوء التخلص من النفايات الطبية",
	KindUnlicensedStaff:      "عمالة غير مرخصة",
	KindMissingRecords:       "عدم وجود سجلات",
	KindAdvertising:          "إعلان مخالف",
	KindOther:                "أخرى",
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) ArabicName() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return string(k)
}

type Action string

const (
	ActionWarning  Action = "warning"
	ActionFine     Action = "fine"
	ActionClosure  Action = "closure"
	ActionReferral Action = "referral"
)

func (a Action) Valid() bool {
	switch a {
	case ActionWarning, ActionFine, ActionClosure, ActionReferral:
		return true
	}
	return false
}

func (a Action) ArabicName() string {
	switch a {
	case ActionWarning:
		return "إنذار"
	case ActionFine:
		return "غرامة"
	case ActionClosure:
		return "إغلاق"
	case ActionReferral:
		return "إحالة للتحقيق"
	default:
		return string(a)
	}
}

type Status string

const (
	StatusActive Status = "active"
	StatusVoided Status = "voided"
)

// Report es un acta de infracción dentro de una visita. Una visita puede tener varias.
// No se borran: se anulan mientras la visita siga en draft.
type Report struct {
	ID      string
	VisitID string

	Kind        Kind
	Description string
	Articles    []string // artículos de la ley/reglamento citados
	Action      Action

	IssuedBy   string
	IssuedAt   time.Time
	RecordedAt time.Time

	Status   Status
	VoidedBy string
	VoidedAt *time.Time
}
