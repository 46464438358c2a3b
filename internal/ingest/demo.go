package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// demoRegions are the synthetic districts the seeded dataset covers.
var demoRegions = []struct {
	State    string
	District string
	Base     int
}{
	{"Delhi", "Central Delhi", 900},
	{"Delhi", "South Delhi", 650},
	{"Maharashtra", "Mumbai", 1200},
	{"Maharashtra", "Pune", 500},
	{"Karnataka", "Bengaluru Urban", 1100},
	{"Karnataka", "Mysuru", 260},
	{"Uttar Pradesh", "Lucknow", 420},
	{"Uttar Pradesh", "Ghaziabad", 700},
	{"Tamil Nadu", "Chennai", 480},
	{"Bihar", "Patna", 380},
}

// SeedDemo writes a deterministic synthetic dataset into dir when it holds
// no CSV files yet. It returns true when files were written. The generator
// is fixed-seed so repeated seeding is byte-identical and therefore a no-op
// for the content ledger.
func SeedDemo(dir string, log *slog.Logger) (bool, error) {
	if log == nil {
		log = slog.Default()
	}
	has, err := hasTabularFiles(dir)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("ingest: create demo dir: %w", err)
	}

	rng := rand.New(rand.NewSource(42))
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	files := map[string]string{
		"demo_enrolment.csv":   buildEnrolmentCSV(rng, start),
		"demo_demographic.csv": buildDemographicCSV(rng, start),
		"demo_biometric.csv":   buildBiometricCSV(rng, start),
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return false, fmt.Errorf("ingest: write %s: %w", name, err)
		}
	}
	log.Info("seeded demo dataset", "dir", dir, "files", len(files))
	return true, nil
}

func hasTabularFiles(dir string) (bool, error) {
	found := false
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("ingest: scan demo dir: %w", err)
	}
	return found, nil
}

func buildEnrolmentCSV(rng *rand.Rand, start time.Time) string {
	var b strings.Builder
	b.WriteString("date,state,district,pincode,age_0_5,age_5_18,age_18_greater\n")
	for week := 0; week < 26; week++ {
		day := start.AddDate(0, 0, week*7)
		for ri, r := range demoRegions {
			// A couple of districts trend upward to exercise inflow zones.
			growth := 1.0
			if ri%3 == 0 {
				growth = 1.0 + float64(week)*0.04
			}
			adults := int(float64(r.Base)*growth) + rng.Intn(80)
			youth := r.Base/3 + rng.Intn(40)
			child := r.Base/6 + rng.Intn(20)
			fmt.Fprintf(&b, "%s,%s,%s,%d,%d,%d,%d\n",
				day.Format("02-01-2006"), r.State, r.District,
				110001+ri, child, youth, adults)
		}
	}
	return b.String()
}

func buildDemographicCSV(rng *rand.Rand, start time.Time) string {
	var b strings.Builder
	b.WriteString("date,state,district,pincode,demo_age_5_18,demo_age_18_greater\n")
	for week := 0; week < 26; week++ {
		day := start.AddDate(0, 0, week*7)
		for ri, r := range demoRegions {
			adults := r.Base/2 + rng.Intn(60)
			if week == 13 && ri == 2 {
				// One mid-series burst so anomaly detection has a spike.
				adults *= 6
			}
			youth := r.Base/5 + rng.Intn(25)
			fmt.Fprintf(&b, "%s,%s,%s,%d,%d,%d\n",
				day.Format("02-01-2006"), r.State, r.District,
				110001+ri, youth, adults)
		}
	}
	return b.String()
}

func buildBiometricCSV(rng *rand.Rand, start time.Time) string {
	var b strings.Builder
	b.WriteString("date,state,district,pincode,bio_age_5_17,bio_age_17_\n")
	for week := 0; week < 26; week++ {
		day := start.AddDate(0, 0, week*7)
		for ri, r := range demoRegions {
			adults := r.Base/4 + rng.Intn(30)
			youth := r.Base/8 + rng.Intn(15)
			fmt.Fprintf(&b, "%s,%s,%s,%d,%d,%d\n",
				day.Format("02-01-2006"), r.State, r.District,
				110001+ri, youth, adults)
		}
	}
	return b.String()
}
