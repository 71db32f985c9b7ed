package controlnumber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bizreg/pkg/domain-errors"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "2025-0007", Format(2025, 7))
	assert.Equal(t, "2025-0001", Format(2025, 1))
	assert.Equal(t, "2025-9999", Format(2025, 9999))
	assert.Equal(t, "2025-10234", Format(2025, 10234))
	assert.Equal(t, "0999-0001", Format(999, 1))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "2024-", Prefix(2024))
}

func TestParse(t *testing.T) {
	t.Run("accepts padded and wide sequences", func(t *testing.T) {
		year, seq, err := Parse("2025-0007")
		require.NoError(t, err)
		assert.Equal(t, 2025, year)
		assert.Equal(t, int64(7), seq)

		year, seq, err = Parse("2025-10234")
		require.NoError(t, err)
		assert.Equal(t, 2025, year)
		assert.Equal(t, int64(10234), seq)
	})

	for _, bad := range []string{
		"",
		"2025",
		"2025-",
		"2025-007",
		"25-0007",
		"20255-0007",
		"2025_0007",
		"2025-00a7",
		"2025-0007-1",
		" 2025-0007",
		"2025-+007",
		"２０２５-0007",
	} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, _, err := Parse(bad)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, "controlNumber", dErrors.FieldOf(err))
			assert.False(t, Valid(bad))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	years := []int{1, 999, 1999, 2024, 2025, 9999}
	seqs := []int64{1, 7, 99, 1000, 9999, 10000, 10234, 1234567}
	for _, y := range years {
		for _, s := range seqs {
			gotYear, gotSeq, err := Parse(Format(y, s))
			require.NoError(t, err)
			assert.Equal(t, y, gotYear)
			assert.Equal(t, s, gotSeq)
		}
	}
}

func TestParseYear(t *testing.T) {
	year, err := ParseYear("2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)

	for _, bad := range []string{"", "24", "abcd", "20245", "0000"} {
		_, err := ParseYear(bad)
		assert.Error(t, err, bad)
	}
}

func TestYearOf(t *testing.T) {
	assert.Equal(t, "2024", YearOf("2024-0001"))
	assert.Equal(t, "", YearOf("legacy"))
	assert.Equal(t, "", YearOf("2024"))
}
