package reports

import (
	"fmt"
	"strings"
)

// Format names an artifact rendering of a run's reports.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatLog   Format = "log"
	FormatPNG   Format = "png"
	FormatMJPEG Format = "mjpeg"
)

var formatSpecs = map[Format]struct {
	name        string
	contentType string
}{
	FormatCSV:   {"reports.csv", "text/csv"},
	FormatJSON:  {"reports.json", "application/json"},
	FormatLog:   {"pandemic_state.txt", "text/plain"},
	FormatPNG:   {"aggregate.png", "image/png"},
	FormatMJPEG: {"infected.avi", "video/x-msvideo"},
}

// FileName is the artifact name under the run prefix.
func (f Format) FileName() string { return formatSpecs[f].name }

// ContentType is the MIME type stored with the artifact.
func (f Format) ContentType() string { return formatSpecs[f].contentType }

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	_, ok := formatSpecs[f]
	return ok
}

// ParseFormats splits a comma separated list, dropping blanks and duplicates.
func ParseFormats(raw string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]struct{})
	for _, part := range strings.Split(raw, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		if !f.Valid() {
			return nil, fmt.Errorf("unsupported export format %q", part)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// ArtifactKey is the blob key of a run artifact.
func ArtifactKey(runID string, f Format) string {
	return "runs/" + runID + "/" + f.FileName()
}
