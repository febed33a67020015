package validation

const (
	// Password requirements
	MinPasswordLength = 8
	MaxPasswordLength = 72

	// String lengths
	MaxDescriptionLength = 500
	MaxReferenceLength   = 100
	MaxNotesLength       = 1000
)

// injectionPatterns are rejected in any free-text payment field.
var injectionPatterns = []string{
	`(?i)<\s*script`,
	`(?i)javascript\s*:`,
	`(?i)\bon\w+\s*=`,
	`(?i)\bunion\s+(all\s+)?select\b`,
	`(?i)\b(drop|truncate|alter)\s+table\b`,
	`(?i)'\s*or\s+'?\d+'?\s*=\s*'?\d+`,
	`--\s*$`,
	`;\s*--`,
	`/\*.*\*/`,
	`\$\{.*\}`,
}
