// Package footprint fetches the extended forensic metadata bundle of a case.
package footprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cybershield-india/evidence-console/internal/casefile"
)

// Source fetches the raw footprint payload of a case.
type Source interface {
	GetFootprint(ctx context.Context, caseID string) ([]byte, error)
}

// Loader fetches footprint bundles. Nothing is cached: every call re-fetches.
type Loader struct {
	src    Source
	logger *log.Logger
}

// New creates a Loader over src.
func New(src Source, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Loader{src: src, logger: logger}
}

// Fetch returns the footprint bundle for caseID. Errors carry the casefile kinds:
// ErrNotFound when the service has no bundle, ErrNetwork when it is unreachable,
// ErrValidation for a malformed payload.
func (l *Loader) Fetch(ctx context.Context, caseID string) (*casefile.Footprint, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, fmt.Errorf("%w: footprint requires a case id", casefile.ErrGuard)
	}
	raw, err := l.src.GetFootprint(ctx, caseID)
	if err != nil {
		l.logger.Printf("footprint %s: %v", caseID, err)
		return nil, fmt.Errorf("fetch footprint %s: %w", caseID, err)
	}
	fp, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode footprint %s: %w", caseID, err)
	}
	if fp.CaseID == "" {
		fp.CaseID = caseID
	}
	if fp.CaseID != caseID {
		return nil, fmt.Errorf("%w: footprint for %q returned for %q", casefile.ErrValidation, fp.CaseID, caseID)
	}
	return fp, nil
}

type wireBundle struct {
	CaseID   string `json:"case_id"`
	Metadata struct {
		FileInfo map[string]interface{} `json:"file_info"`
		EXIF     map[string]interface{} `json:"exif_data"`
	} `json:"metadata"`
	Network struct {
		RiskScore          interface{} `json:"risk_score"`
		BehavioralPatterns []string    `json:"behavioral_patterns"`
		RiskIndicators     []string    `json:"risk_indicators"`
	} `json:"network_indicators"`
	RiskIndicators []string `json:"risk_indicators"`
}

// Decode converts the service's footprint payload into a casefile.Footprint.
// Unknown EXIF fields are kept as display strings.
func Decode(raw []byte) (*casefile.Footprint, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var w wireBundle
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: footprint payload is not a JSON object: %v", casefile.ErrValidation, err)
	}

	fp := &casefile.Footprint{
		CaseID: strings.TrimSpace(w.CaseID),
		FileInfo: casefile.FileInfo{
			Name:     firstString(w.Metadata.FileInfo, "filename", "name"),
			Format:   firstString(w.Metadata.FileInfo, "format"),
			MimeType: firstString(w.Metadata.FileInfo, "mime_type"),
			SHA256:   firstString(w.Metadata.FileInfo, "sha256", "hash"),
			Created:  firstString(w.Metadata.FileInfo, "created"),
		},
		BehavioralPatterns: w.Network.BehavioralPatterns,
		RiskIndicators:     append(append([]string(nil), w.RiskIndicators...), w.Network.RiskIndicators...),
	}
	fp.FileInfo.SizeBytes = sizeBytes(w.Metadata.FileInfo)
	if n, ok := toFloat(w.Network.RiskScore); ok {
		fp.RiskScore = int(math.Round(n))
	}

	for k, v := range w.Metadata.EXIF {
		if k == "gps" {
			fp.GPS = decodeGPS(v)
			continue
		}
		if fp.EXIF == nil {
			fp.EXIF = make(map[string]string)
		}
		fp.EXIF[k] = display(v)
	}
	if len(fp.RiskIndicators) == 0 {
		fp.RiskIndicators = nil
	}
	return fp, nil
}

func decodeGPS(v interface{}) *casefile.GPS {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil
	}
	g := &casefile.GPS{
		Coordinates: firstString(m, "coordinates"),
		MapsURL:     firstString(m, "maps_url"),
	}
	g.Latitude, _ = toFloat(m["latitude"])
	g.Longitude, _ = toFloat(m["longitude"])
	if g.Coordinates == "" && (g.Latitude != 0 || g.Longitude != 0) {
		g.Coordinates = fmt.Sprintf("%.6f, %.6f", g.Latitude, g.Longitude)
	}
	return g
}

// sizeBytes reads size_bytes or size, falling back to size_mb.
func sizeBytes(info map[string]interface{}) int64 {
	for _, key := range []string{"size_bytes", "size"} {
		if n, ok := toFloat(info[key]); ok {
			return int64(n)
		}
	}
	if mb, ok := toFloat(info["size_mb"]); ok {
		return int64(math.Round(mb * 1024 * 1024))
	}
	return 0
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if s := strings.TrimSpace(display(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func display(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, display(e))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+display(t[k]))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}
