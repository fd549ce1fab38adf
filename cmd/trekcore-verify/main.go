// Command trekcore-verify scans the configured persistent store for integrity
// findings: duplicate ids, duplicate emails, dangling references, and trek
// pricing drift. It exits non-zero when any finding is reported.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"trekcore/internal/core"
	"trekcore/pkg/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("trekcore-verify", flag.ContinueOnError)
	flags.SetOutput(stderr)
	envFile := flags.String("env", "", "optional .env file with TREKCORE_* configuration")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(stderr, "load %s: %v\n", *envFile, err)
			return 2
		}
	} else {
		// Best effort default; a missing .env is not an error.
		_ = godotenv.Load()
	}

	log := zerolog.New(stderr).With().Timestamp().Logger()
	store, err := core.OpenPersistentStore(domain.DefaultRulesEngine(), log)
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 2
	}

	findings := verify(store)
	for _, f := range findings {
		fmt.Fprintln(stdout, f)
	}
	if len(findings) > 0 {
		fmt.Fprintf(stderr, "%d finding(s)\n", len(findings))
		return 1
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}

// verify runs all integrity checks against a snapshot of the store.
func verify(store domain.PersistentStore) []string {
	var findings []string
	report := func(format string, args ...any) {
		findings = append(findings, fmt.Sprintf(format, args...))
	}

	attractions := store.ListAttractions()
	guides := store.ListGuides()
	users := store.ListUsers()
	treks := store.ListTreks()
	bookings := store.ListBookings()
	emergencies := store.ListEmergencies()

	attractionIDs := make(map[int]bool, len(attractions))
	for _, a := range attractions {
		if attractionIDs[a.ID] {
			report("duplicate attraction id %d", a.ID)
		}
		attractionIDs[a.ID] = true
	}

	guideEmails := make(map[string]bool, len(guides))
	for _, g := range guides {
		key := strings.ToLower(g.Email)
		if guideEmails[key] {
			report("duplicate guide email %s", g.Email)
		}
		guideEmails[key] = true
	}

	userEmails := make(map[string]bool, len(users))
	for _, u := range users {
		key := strings.ToLower(u.Email)
		if userEmails[key] {
			report("duplicate user email %s", u.Email)
		}
		userEmails[key] = true
	}

	trekIDs := make(map[int]bool, len(treks))
	for _, t := range treks {
		if trekIDs[t.ID] {
			report("duplicate trek id %d", t.ID)
		}
		trekIDs[t.ID] = true
		if !attractionIDs[t.AttractionID] {
			report("trek %d references missing attraction %d", t.ID, t.AttractionID)
		}
		if t.GuideEmail != "" && !guideEmails[strings.ToLower(t.GuideEmail)] {
			report("trek %d references missing guide %s", t.ID, t.GuideEmail)
		}
		if t.DiscountPercent < 0 || t.DiscountPercent > 100 {
			report("trek %d discount percent %.2f outside [0,100]", t.ID, t.DiscountPercent)
		}
		want := t.OriginalCost
		if t.HasDiscount {
			want = domain.FinalCost(t.OriginalCost, t.DiscountPercent)
		}
		if diff := t.Cost - want; diff > 1e-6 || diff < -1e-6 {
			report("trek %d cost %.2f does not match derived cost %.2f", t.ID, t.Cost, want)
		}
	}

	bookingIDs := make(map[int]bool, len(bookings))
	for _, b := range bookings {
		if bookingIDs[b.ID] {
			report("duplicate booking id %d", b.ID)
		}
		bookingIDs[b.ID] = true
		if !trekIDs[b.TrekID] {
			report("booking %s references missing trek %d", b.BookingID, b.TrekID)
		}
		if !userEmails[strings.ToLower(b.UserEmail)] {
			report("booking %s references missing user %s", b.BookingID, b.UserEmail)
		}
		if b.GuideEmail != "" && !guideEmails[strings.ToLower(b.GuideEmail)] {
			report("booking %s references missing guide %s", b.BookingID, b.GuideEmail)
		}
	}

	emergencyIDs := make(map[int]bool, len(emergencies))
	for _, e := range emergencies {
		if emergencyIDs[e.ID] {
			report("duplicate emergency id %d", e.ID)
		}
		emergencyIDs[e.ID] = true
		if !guideEmails[strings.ToLower(e.GuideEmail)] {
			report("emergency %d references missing guide %s", e.ID, e.GuideEmail)
		}
		if e.Status == domain.StatusResolved && e.ResolvedAtStr == "" {
			report("emergency %d resolved without resolution time", e.ID)
		}
	}

	return findings
}
