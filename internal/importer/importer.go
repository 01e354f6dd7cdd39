// Package importer turns vCard streams into person records. Each imported
// card immediately runs through Hebrew recalculation, so a freshly imported
// address book is fully derived before its first sync.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/recalc"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// Importer creates person records from vCard data.
type Importer struct {
	Store   store.Store
	Recalc  *recalc.Recalculator
	Clock   hebdate.Clock
	Fetcher VCardFetcher
}

// Result summarizes one import run.
type Result struct {
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	PersonIDs []string `json:"person_ids,omitempty"`
}

// ImportURL fetches a remote vCard resource and imports it.
func (im *Importer) ImportURL(ctx context.Context, tenantID, targetURL, user, pass string) (Result, error) {
	if im.Fetcher == nil {
		return Result{}, errors.New(config.ErrFetcherMissing)
	}
	reader, err := im.Fetcher.Fetch(ctx, targetURL, user, pass)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = reader.Close() }()
	return im.Import(ctx, tenantID, reader)
}

// Import decodes the vCard stream and creates one person per card carrying a
// parseable BDAY. Malformed cards are skipped, not fatal, to maximize data
// recovery from messy address books.
func (im *Importer) Import(ctx context.Context, tenantID string, r io.Reader) (Result, error) {
	log := slog.With(
		config.LogKeyComponent, config.CompImporter,
		config.LogKeyTenant, tenantID,
	)

	decoder := vcard.NewDecoder(r)
	var result Result

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn(config.MsgSkippedCard, config.LogKeyError, err)
			result.Skipped++
			continue
		}

		bday := card.Get(config.VCardBDAY)
		if bday == nil || bday.Value == "" {
			result.Skipped++
			continue
		}

		birthDate, yearKnown, err := parseDate(bday.Value)
		if err != nil {
			log.Debug(config.MsgSkippedDate, config.LogKeyValue, bday.Value)
			result.Skipped++
			continue
		}
		// A year-less BDAY cannot anchor a Hebrew conversion.
		if !yearKnown {
			log.Debug(config.MsgSkippedDate, config.LogKeyValue, bday.Value)
			result.Skipped++
			continue
		}

		first, last := cardName(card)

		person := model.Person{
			ID:                 uuid.NewString(),
			TenantID:           tenantID,
			FirstName:          first,
			LastName:           last,
			BirthDateGregorian: birthDate.Format(config.DateFormatISO),
			UpdatedAt:          im.Clock.Now().UTC(),
		}
		if err := im.Store.Put(ctx, config.CollectionPersons, person.ID, person); err != nil {
			return result, err
		}

		_, err = im.Recalc.Execute(ctx, person.ID, person.BirthDateGregorian, person.AfterSunset, tenantID)
		if err != nil {
			log.Warn(config.ErrRecalcFailed,
				config.LogKeyPerson, person.ID,
				config.LogKeyError, err,
			)
		}

		result.Created++
		result.PersonIDs = append(result.PersonIDs, person.ID)
	}

	log.Info(config.MsgImportDone,
		config.LogKeyCount, result.Created,
		config.LogKeySkipped, result.Skipped,
	)
	return result, nil
}

// cardName extracts a (first, last) pair. Name strategy: FN (formatted) over
// N (structured) over the fallback.
func cardName(card vcard.Card) (string, string) {
	if n := card.Name(); n != nil && (n.GivenName != "" || n.FamilyName != "") {
		return n.GivenName, n.FamilyName
	}
	if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
		parts := strings.SplitN(fn.Value, " ", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
		return parts[0], ""
	}
	return config.FallbackName, ""
}

// parseDate handles the vCard date formats seen in the wild. Year-less
// truncated forms parse against a leap-year scaffold so Feb 29 survives.
func parseDate(value string) (time.Time, bool, error) {
	formatsWithYear := []string{
		config.DateFormatISO,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return t, true, nil
		}
	}

	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			safeDate := time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return safeDate, false, nil
		}
	}

	return time.Time{}, false, fmt.Errorf("%s: %q", config.ErrDateParse, value)
}
