package core

// School classes (cohorts)
const (
	ClassNursery = "Nursery"
	ClassLKG     = "LKG"
	ClassUKG     = "UKG"
)

var Classes = []string{ClassNursery, ClassLKG, ClassUKG}

func IsValidClass(class string) bool {
	return StringInSlice(class, Classes)
}
