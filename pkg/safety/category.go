package safety

// Category identifies a class of policy violation.
type Category string

const (
	CategoryHateSpeech      Category = "HATE_SPEECH"
	CategoryViolence        Category = "VIOLENCE"
	CategorySexualContent   Category = "SEXUAL_CONTENT"
	CategorySelfHarm        Category = "SELF_HARM"
	CategoryDangerous       Category = "DANGEROUS_CONTENT"
	CategoryHarassment      Category = "HARASSMENT"
	CategoryIllegalActivity Category = "ILLEGAL_ACTIVITY"
)

// Categories returns every violation category the gate screens for.
func Categories() []Category {
	return []Category{
		CategoryHateSpeech,
		CategoryViolence,
		CategorySexualContent,
		CategorySelfHarm,
		CategoryDangerous,
		CategoryHarassment,
		CategoryIllegalActivity,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryHateSpeech, CategoryViolence, CategorySexualContent,
		CategorySelfHarm, CategoryDangerous, CategoryHarassment,
		CategoryIllegalActivity:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// Severity grades how serious a violation is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (s Severity) String() string { return string(s) }

// CheckKind distinguishes the two gate entry points.
type CheckKind string

const (
	CheckInput  CheckKind = "INPUT"
	CheckOutput CheckKind = "OUTPUT"
)
