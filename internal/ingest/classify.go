package ingest

import (
	"strings"

	"fluxmap/internal/domain"
)

// Indicator keywords scored against a file's header to decide its kind.
// Matching is substring-based over the joined, lowercased column names.
var indicatorKeywords = map[domain.RecordKind][]string{
	domain.KindEnrolment: {
		"enrol", "aadhaar_generated", "age_0_5", "age_5_17", "age_18",
		"total_enrolment", "age_5_10",
	},
	domain.KindDemographic: {
		"demo", "demo_age", "address_update", "name_update", "dob_update",
		"mobile_update", "demographic",
	},
	domain.KindBiometric: {
		"bio", "bio_age", "fingerprint", "iris", "photo_update", "biometric",
	},
}

// kindOrder fixes iteration order so tie resolution is deterministic.
var kindOrder = []domain.RecordKind{
	domain.KindEnrolment, domain.KindDemographic, domain.KindBiometric,
}

// Classify determines a file's record kind from its header row alone. The
// kind with the highest keyword match count wins; ties fall through to the
// age-band column heuristic; zero matches anywhere is ErrUnclassifiable.
func Classify(header []string) (domain.RecordKind, error) {
	joined := strings.ToLower(strings.Join(header, " "))

	scores := make(map[domain.RecordKind]int, len(kindOrder))
	best := 0
	for _, kind := range kindOrder {
		n := 0
		for _, kw := range indicatorKeywords[kind] {
			if strings.Contains(joined, kw) {
				n++
			}
		}
		scores[kind] = n
		if n > best {
			best = n
		}
	}

	if best == 0 {
		if kind, ok := classifyByAgeColumns(header); ok {
			return kind, nil
		}
		return "", ErrUnclassifiable
	}

	var winners []domain.RecordKind
	for _, kind := range kindOrder {
		if scores[kind] == best {
			winners = append(winners, kind)
		}
	}
	if len(winners) == 1 {
		return winners[0], nil
	}

	if kind, ok := classifyByAgeColumns(header); ok {
		return kind, nil
	}
	// Age heuristic could not break the tie either; fall back to the fixed
	// kind order.
	return winners[0], nil
}

// classifyByAgeColumns inspects age-band column names: a demo-prefixed age
// column marks demographic data, bio-prefixed marks biometric, and plain age
// bands mark enrolment counts.
func classifyByAgeColumns(header []string) (domain.RecordKind, bool) {
	sawAge := false
	for _, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if !strings.Contains(name, "age") {
			continue
		}
		sawAge = true
		if strings.Contains(name, "demo") {
			return domain.KindDemographic, true
		}
		if strings.Contains(name, "bio") {
			return domain.KindBiometric, true
		}
	}
	if sawAge {
		return domain.KindEnrolment, true
	}
	return "", false
}
