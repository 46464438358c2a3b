package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxmap/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   domain.RecordKind
	}{
		{
			name:   "enrolment by age bands",
			header: []string{"date", "state", "district", "pincode", "age_0_5", "age_5_17", "age_18_greater"},
			want:   domain.KindEnrolment,
		},
		{
			name:   "enrolment by keyword",
			header: []string{"Date", "State", "Total_Enrolment"},
			want:   domain.KindEnrolment,
		},
		{
			name:   "demographic by prefixed age bands",
			header: []string{"date", "state", "district", "demo_age_5_18", "demo_age_18_greater"},
			want:   domain.KindDemographic,
		},
		{
			name:   "demographic by update columns",
			header: []string{"date", "state", "address_update", "mobile_update"},
			want:   domain.KindDemographic,
		},
		{
			name:   "biometric by prefixed age bands",
			header: []string{"date", "state", "district", "bio_age_5_17", "bio_age_17_"},
			want:   domain.KindBiometric,
		},
		{
			name:   "biometric by modality columns",
			header: []string{"date", "state", "fingerprint", "iris"},
			want:   domain.KindBiometric,
		},
		{
			name:   "case insensitive",
			header: []string{"DATE", "STATE", "AGE_0_5", "AGE_18_GREATER"},
			want:   domain.KindEnrolment,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.header)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyAgeFallback(t *testing.T) {
	// No indicator keyword matches, but an age column exists.
	got, err := Classify([]string{"when", "where", "applicant_age_band"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindEnrolment, got)
}

func TestClassifyUnclassifiable(t *testing.T) {
	_, err := Classify([]string{"foo", "bar", "baz"})
	require.ErrorIs(t, err, ErrUnclassifiable)
}

func TestClassifyEmptyHeader(t *testing.T) {
	_, err := Classify(nil)
	require.ErrorIs(t, err, ErrUnclassifiable)
}
