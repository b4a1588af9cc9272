package worker

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/atlas-desktop/trading-backend/internal/runs"
)

// artifactEntry is one kind=path pair parsed from an "artifacts:" line.
type artifactEntry struct {
	kind string
	path string
}

// collectResultsFromLine scans one line of engine stdout/stderr for metric
// and artifact tokens. An "artifacts:" prefixed line registers one artifact
// per whitespace-separated kind=path token. Every line (including artifact
// lines) is additionally scanned token by token, splitting on whitespace,
// comma, and semicolon, for key=value metric pairs; values that parse as a
// float (after stripping a trailing '%') are stored numerically, everything
// else as a string. Later keys on the same line overwrite earlier ones.
func collectResultsFromLine(line string, metrics map[string]interface{}, artifacts *[]artifactEntry) {
	if rest, ok := strings.CutPrefix(line, "artifacts:"); ok {
		for _, token := range strings.Fields(rest) {
			k, v, ok := strings.Cut(token, "=")
			if !ok {
				continue
			}
			kind := strings.TrimSpace(k)
			path := strings.TrimSuffix(strings.TrimSpace(v), ",")
			if kind != "" && path != "" {
				*artifacts = append(*artifacts, artifactEntry{kind: kind, path: path})
			}
		}
	}

	for _, token := range strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ';'
	}) {
		k, vRaw, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		value := strings.Trim(strings.TrimSpace(vRaw), `"`)
		value = strings.TrimSuffix(value, ",")
		if value == "" {
			continue
		}
		if num, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64); err == nil {
			metrics[key] = num
		} else {
			metrics[key] = value
		}
	}
}

// toRunsArtifacts converts parsed artifact entries into persistence DTOs,
// stamping each with runID; CreatedAt/ID are left for the store to assign.
func toRunsArtifacts(runID uuid.UUID, entries []artifactEntry) []runs.Artifact {
	out := make([]runs.Artifact, 0, len(entries))
	for _, e := range entries {
		out = append(out, runs.Artifact{RunID: runID, Kind: e.kind, Path: e.path})
	}
	return out
}
