package clinics

import "time"

// Governorate de Kuwait donde opera la clínica.
// @Enum capital, hawalli, farwaniya, ahmadi, jahra, mubarak_al_kabeer
type Governorate string

const (
	GovernorateCapital         Governorate = "capital"
	GovernorateHawalli         Governorate = "hawalli"
	GovernorateFarwaniya       Governorate = "farwaniya"
	GovernorateAhmadi          Governorate = "ahmadi"
	GovernorateJahra           Governorate = "jahra"
	GovernorateMubarakAlKabeer Governorate = "mubarak_al_kabeer"
)

func (g Governorate) Valid() bool {
	switch g {
	case GovernorateCapital, GovernorateHawalli, GovernorateFarwaniya,
		GovernorateAhmadi, GovernorateJahra, GovernorateMubarakAlKabeer:
		return true
	}
	return false
}

// ArabicName para los documentos impresos.
func (g Governorate) ArabicName() string {
	switch g {
	case GovernorateCapital:
		return "العاصمة"
	case GovernorateHawalli:
		return "حولي"
	case GovernorateFarwaniya:
		return "الفروانية"
	case GovernorateAhmadi:
		return "الأحمدي"
	case GovernorateJahra:
		return "الجهراء"
	case GovernorateMubarakAlKabeer:
		return "مبارك الكبير"
	}
	return string(g)
}

// Clinic es la clínica dental sujeta a inspección.
type Clinic struct {
	ID string

	Name          string
	LicenseNumber string
	Governorate   Governorate
	Area          string
	Address       string

	OwnerName string
	Phone     string

	CreatedAt time.Time
	UpdatedAt time.Time
}
