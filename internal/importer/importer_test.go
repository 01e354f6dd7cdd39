package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/recalc"
	"github.com/tartampluch/go-hebsync/internal/store"
)

const sampleVCards = "BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"FN:Dana Levi\r\n" +
	"N:Levi;Dana;;;\r\n" +
	"BDAY:19900315\r\n" +
	"END:VCARD\r\n" +
	"BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"FN:No Birthday\r\n" +
	"END:VCARD\r\n" +
	"BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"FN:Year Unknown\r\n" +
	"BDAY:--0315\r\n" +
	"END:VCARD\r\n"

func testImporter(t *testing.T) (*Importer, *store.BadgerStore) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clk := hebdate.FixedClock{Instant: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)}
	return &Importer{
		Store:  s,
		Recalc: &recalc.Recalculator{Store: s, Clock: clk, ProjectionYears: config.ProjectionYears},
		Clock:  clk,
	}, s
}

func TestImportCreatesDerivedPersons(t *testing.T) {
	ctx := context.Background()
	im, s := testImporter(t)
	require.NoError(t, s.Put(ctx, config.CollectionTenants, "t1", model.Tenant{ID: "t1", Timezone: "UTC"}))

	result, err := im.Import(ctx, "t1", strings.NewReader(sampleVCards))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped, "card without BDAY and year-less card")
	require.Len(t, result.PersonIDs, 1)

	var person model.Person
	require.NoError(t, s.FindByID(ctx, config.CollectionPersons, result.PersonIDs[0], &person))
	assert.Equal(t, "Dana", person.FirstName)
	assert.Equal(t, "Levi", person.LastName)
	assert.Equal(t, "1990-03-15", person.BirthDateGregorian)
	assert.Equal(t, "t1", person.TenantID)

	// Recalculation ran as part of the import.
	assert.Equal(t, "Adar", person.HebrewMonth)
	assert.Equal(t, 18, person.HebrewDay)
	assert.NotEmpty(t, person.FutureHebrewOccurrences)
}

func TestImportEmptyStream(t *testing.T) {
	ctx := context.Background()
	im, _ := testImporter(t)

	result, err := im.Import(ctx, "t1", strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, result.Created)
}

func TestImportURLRequiresFetcher(t *testing.T) {
	im, _ := testImporter(t)
	_, err := im.ImportURL(context.Background(), "t1", "https://example.com/a.vcf", "", "")
	assert.Error(t, err)
}

func TestParseDateFormats(t *testing.T) {
	tests := []struct {
		value     string
		wantDate  string
		yearKnown bool
		wantErr   bool
	}{
		{value: "1990-03-15", wantDate: "1990-03-15", yearKnown: true},
		{value: "19900315", wantDate: "1990-03-15", yearKnown: true},
		{value: "1990-03-15T00:00:00Z", wantDate: "1990-03-15", yearKnown: true},
		{value: "--03-15", wantDate: "2000-03-15", yearKnown: false},
		{value: "--0229", wantDate: "2000-02-29", yearKnown: false},
		{value: "yesterday", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tc := range tests {
		got, yearKnown, err := parseDate(tc.value)
		if tc.wantErr {
			assert.Error(t, err, tc.value)
			continue
		}
		require.NoError(t, err, tc.value)
		assert.Equal(t, tc.wantDate, got.Format(config.DateFormatISO), tc.value)
		assert.Equal(t, tc.yearKnown, yearKnown, tc.value)
	}
}

func TestCardNameFallsBackToFormattedName(t *testing.T) {
	const card = "BEGIN:VCARD\r\n" +
		"VERSION:4.0\r\n" +
		"FN:Only Formatted\r\n" +
		"BDAY:1985-06-01\r\n" +
		"END:VCARD\r\n"

	ctx := context.Background()
	im, s := testImporter(t)

	result, err := im.Import(ctx, "t1", strings.NewReader(card))
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	var person model.Person
	require.NoError(t, s.FindByID(ctx, config.CollectionPersons, result.PersonIDs[0], &person))
	assert.Equal(t, "Only", person.FirstName)
	assert.Equal(t, "Formatted", person.LastName)
}
