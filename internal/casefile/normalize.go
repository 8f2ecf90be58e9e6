package casefile

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Shape identifies which payload layout a response arrived in.
type Shape int

const (
	// ShapeNested carries the verdict under a "detection" object.
	ShapeNested Shape = iota + 1
	// ShapeFlat carries is_ai_generated/confidence at the top level. The dedup
	// short-circuit and the case registry listing both use it.
	ShapeFlat
)

func (s Shape) String() string {
	switch s {
	case ShapeNested:
		return "nested"
	case ShapeFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// Response is a normalized analysis response. Duplicate and BlockchainStatus are
// side-band service fields and never part of the record itself.
type Response struct {
	Record           CaseRecord
	Shape            Shape
	Duplicate        bool
	BlockchainStatus string
}

type wireDetection struct {
	IsAIGenerated *bool    `json:"is_ai_generated"`
	Confidence    *float64 `json:"confidence"`
}

type wireRecord struct {
	CaseID    *string `json:"case_id"`
	Filename  string  `json:"filename"`
	MediaType string  `json:"media_type"`
	Timestamp string  `json:"timestamp"`
	CreatedAt string  `json:"created_at"`

	Detection     *wireDetection `json:"detection"`
	IsAIGenerated *bool          `json:"is_ai_generated"`
	Confidence    *float64       `json:"confidence"`

	BlockchainTx     *string `json:"blockchain_tx"`
	BlockchainStatus string  `json:"blockchain_status"`
	Duplicate        bool    `json:"duplicate"`
}

// timestamp layouts accepted from the services; naive values are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Normalize decodes an analysis payload of either shape into a CaseRecord.
func Normalize(raw []byte) (CaseRecord, error) {
	resp, err := NormalizeResponse(raw)
	if err != nil {
		return CaseRecord{}, err
	}
	return resp.Record, nil
}

// NormalizeResponse decodes an analysis payload and reports its shape and side-band
// fields. It fails with ErrValidation and never clamps or defaults a missing value.
func NormalizeResponse(raw []byte) (Response, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Response{}, invalid("payload is not a JSON object")
	}

	var w wireRecord
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Response{}, invalid("decode payload: %v", err)
	}

	if w.CaseID == nil || strings.TrimSpace(*w.CaseID) == "" {
		return Response{}, invalid("case_id is missing")
	}
	caseID := *w.CaseID

	det, shape, err := w.detection()
	if err != nil {
		return Response{}, invalid("case %s: %v", caseID, err)
	}

	mt := MediaType(strings.ToLower(strings.TrimSpace(w.MediaType)))
	if !mt.Valid() {
		return Response{}, invalid("case %s: unsupported media_type %q", caseID, w.MediaType)
	}

	ts, err := parseTimestamp(w.Timestamp, w.CreatedAt)
	if err != nil {
		return Response{}, invalid("case %s: %v", caseID, err)
	}

	rec := CaseRecord{
		CaseID:    caseID,
		Filename:  w.Filename,
		MediaType: mt,
		Timestamp: ts,
		Detection: det,
	}
	if w.BlockchainTx != nil {
		rec.BlockchainTx = strings.TrimSpace(*w.BlockchainTx)
	}

	return Response{
		Record:           rec,
		Shape:            shape,
		Duplicate:        w.Duplicate,
		BlockchainStatus: w.BlockchainStatus,
	}, nil
}

// detection resolves the tagged union: nested first, flattened as the fallback.
func (w wireRecord) detection() (Detection, Shape, error) {
	flatPresent := w.IsAIGenerated != nil || w.Confidence != nil

	if w.Detection != nil {
		d, err := buildDetection(w.Detection.IsAIGenerated, w.Detection.Confidence)
		if err != nil {
			return Detection{}, 0, err
		}
		if flatPresent {
			flat, ferr := buildDetection(w.IsAIGenerated, w.Confidence)
			if ferr != nil || flat != d {
				return Detection{}, 0, errConflictingDetection
			}
		}
		return d, ShapeNested, nil
	}

	if !flatPresent {
		return Detection{}, 0, errMissingDetection
	}
	d, err := buildDetection(w.IsAIGenerated, w.Confidence)
	if err != nil {
		return Detection{}, 0, err
	}
	return d, ShapeFlat, nil
}

type detectionError string

func (e detectionError) Error() string { return string(e) }

const (
	errMissingDetection     = detectionError("detection is missing")
	errMissingVerdict       = detectionError("is_ai_generated is missing")
	errMissingConfidence    = detectionError("confidence is missing")
	errConfidenceRange      = detectionError("confidence is outside [0,1]")
	errConflictingDetection = detectionError("nested and flattened detection fields disagree")
)

func buildDetection(isAI *bool, confidence *float64) (Detection, error) {
	if confidence == nil {
		return Detection{}, errMissingConfidence
	}
	c := *confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return Detection{}, errConfidenceRange
	}
	if isAI == nil {
		return Detection{}, errMissingVerdict
	}
	return Detection{IsAIGenerated: *isAI, Confidence: c}, nil
}

func parseTimestamp(primary, fallback string) (time.Time, error) {
	value := strings.TrimSpace(primary)
	if value == "" {
		value = strings.TrimSpace(fallback)
	}
	if value == "" {
		return time.Time{}, detectionError("timestamp is missing")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, detectionError("unparseable timestamp " + value)
}

// DecodeListing decodes a registry listing of the form {"cases": [...]}. Any entry
// that fails normalization fails the whole listing.
func DecodeListing(raw []byte) ([]CaseRecord, error) {
	var envelope struct {
		Cases *[]json.RawMessage `json:"cases"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, invalid("decode listing: %v", err)
	}
	if envelope.Cases == nil {
		return nil, invalid("listing has no cases field")
	}
	out := make([]CaseRecord, 0, len(*envelope.Cases))
	for i, item := range *envelope.Cases {
		rec, err := Normalize(item)
		if err != nil {
			return nil, invalidAt(i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func invalidAt(index int, err error) error {
	return invalid("listing entry %d: %s", index, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
}

func percent(confidence float64) int {
	return int(math.Round(confidence * 100))
}
