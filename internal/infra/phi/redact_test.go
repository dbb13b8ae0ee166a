package phi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		kind Kind
	}{
		{"ssn", "SSN 123-45-6789 on file.", "SSN [REDACTED_SSN] on file.", KindSSN},
		{"email", "Contact jane.doe@example.org for records.", "Contact [REDACTED_EMAIL] for records.", KindEmail},
		{"phone", "Call (555) 123-4567 today.", "Call [REDACTED_PHONE] today.", KindPhone},
		{"dob", "DOB: 04/12/1971", "DOB: [REDACTED_DOB]", KindDOB},
		{"va file", "VA file number: 12345678", "VA file number: [REDACTED_VA_FILE]", KindVAFile},
		{"mrn", "MRN: A12-3456", "MRN: [REDACTED_MRN]", KindMRN},
		{"labelled name", "Veteran: John Q. Public", "Veteran: [REDACTED_NAME]", KindName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.in)
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, 1, got.Counts[tt.kind])
			assert.Equal(t, 1, got.Total())
		})
	}
}

func TestRedact_LeavesMedicalContentAlone(t *testing.T) {
	in := "It is at least as likely as not (50% or greater probability) that the tinnitus is due to noise exposure during service from 1990 to 1994."

	got := Redact(in)

	assert.Equal(t, in, got.Text)
	assert.Zero(t, got.Total())
}

func TestRedact_MultipleKinds(t *testing.T) {
	in := "Patient: Maria Lopez\nDOB: 1/2/1980\nSSN: 987-65-4321\nPhone 555.867.5309"

	got := Redact(in)

	assert.Equal(t, 4, got.Total())
	assert.Equal(t, []Kind{KindDOB, KindName, KindPhone, KindSSN}, got.Kinds())
	assert.NotContains(t, got.Text, "Maria")
	assert.NotContains(t, got.Text, "987-65-4321")
}
