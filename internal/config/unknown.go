package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// knownKeys lists the accepted top-level config keys, sorted so the
// closest-match scan is deterministic when two candidates tie.
var knownKeys = []string{
	"client_id",
	"log_level",
	"mode",
	"model_name",
	"tenant_id",
	"workspace_url",
}

// suggestionCutoff is the largest edit distance still offered as a
// "did you mean" hint.
const suggestionCutoff = 3

// checkUnknownKeys turns every key the decoder left untouched into an
// error, with a hint when a known key is plausibly what was meant.
func checkUnknownKeys(meta *toml.MetaData) error {
	var errs []error

	for _, key := range meta.Undecoded() {
		name, _, _ := strings.Cut(key.String(), ".")

		if hint := suggestKey(name); hint != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q (did you mean %q?)", name, hint))
			continue
		}

		errs = append(errs, fmt.Errorf("unknown config key %q", name))
	}

	return errors.Join(errs...)
}

// suggestKey returns the known key closest to name, or "" when nothing is
// within suggestionCutoff edits.
func suggestKey(name string) string {
	hint := ""
	best := suggestionCutoff + 1

	for _, candidate := range knownKeys {
		if d := editDistance(name, candidate); d < best {
			best = d
			hint = candidate
		}
	}

	return hint
}

// editDistance is the Levenshtein distance over bytes, computed in a
// single reused row.
func editDistance(a, b string) int {
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		diag := row[0]
		row[0] = i

		for j := 1; j <= len(b); j++ {
			sub := diag
			if a[i-1] != b[j-1] {
				sub++
			}

			diag = row[j]
			row[j] = min(sub, row[j]+1, row[j-1]+1)
		}
	}

	return row[len(b)]
}
