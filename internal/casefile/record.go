// Package casefile holds the canonical case record shared by every view of the
// console, the normalizer that produces it from analysis service payloads, and the
// error taxonomy used across the workflow.
package casefile

import (
	"encoding/json"
	"fmt"
	"time"
)

// MediaType classifies the analyzed media.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Valid reports whether m is one of the supported media types.
func (m MediaType) Valid() bool {
	return m == MediaImage || m == MediaVideo
}

// Detection is the verdict produced by the external analysis engine.
type Detection struct {
	IsAIGenerated bool    `json:"is_ai_generated"`
	Confidence    float64 `json:"confidence"`
}

// Percent returns the confidence as a rounded integer percentage.
func (d Detection) Percent() int {
	return percent(d.Confidence)
}

// Verdict returns the human label for the detection.
func (d Detection) Verdict() string {
	if d.IsAIGenerated {
		return "AI-Generated"
	}
	return "Authentic"
}

// CaseRecord is one analyzed media item together with its verdict. Values are
// treated as immutable snapshots; use WithFootprint to derive an extended copy.
type CaseRecord struct {
	CaseID       string
	Filename     string
	MediaType    MediaType
	Timestamp    time.Time
	Detection    Detection
	BlockchainTx string
	Footprint    *Footprint
}

// Anchored reports whether the record carries a blockchain transaction hash.
func (r CaseRecord) Anchored() bool {
	return r.BlockchainTx != ""
}

// BlockchainStatus mirrors the "anchored"/"pending" label used by the services.
func (r CaseRecord) BlockchainStatus() string {
	if r.Anchored() {
		return "anchored"
	}
	return "pending"
}

// Clone returns a deep copy of the record.
func (r CaseRecord) Clone() CaseRecord {
	out := r
	if r.Footprint != nil {
		fp := r.Footprint.Clone()
		out.Footprint = &fp
	}
	return out
}

// WithFootprint returns a copy of the record with fp attached. Every other field is
// carried over unchanged.
func (r CaseRecord) WithFootprint(fp Footprint) (CaseRecord, error) {
	if fp.CaseID != "" && fp.CaseID != r.CaseID {
		return CaseRecord{}, fmt.Errorf("%w: footprint for case %q cannot extend case %q", ErrValidation, fp.CaseID, r.CaseID)
	}
	out := r.Clone()
	attached := fp.Clone()
	attached.CaseID = r.CaseID
	out.Footprint = &attached
	return out, nil
}

// canonicalRecord fixes the field order and encoding of the canonical form.
type canonicalRecord struct {
	CaseID       string     `json:"case_id"`
	Filename     string     `json:"filename"`
	MediaType    MediaType  `json:"media_type"`
	Timestamp    string     `json:"timestamp"`
	Detection    Detection  `json:"detection"`
	BlockchainTx *string    `json:"blockchain_tx"`
	Footprint    *Footprint `json:"footprint,omitempty"`
}

// MarshalJSON encodes the record in its canonical form.
func (r CaseRecord) MarshalJSON() ([]byte, error) {
	c := canonicalRecord{
		CaseID:    r.CaseID,
		Filename:  r.Filename,
		MediaType: r.MediaType,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		Detection: r.Detection,
		Footprint: r.Footprint,
	}
	if r.BlockchainTx != "" {
		tx := r.BlockchainTx
		c.BlockchainTx = &tx
	}
	return json.Marshal(c)
}

// UnmarshalJSON accepts any payload shape the normalizer accepts.
func (r *CaseRecord) UnmarshalJSON(data []byte) error {
	resp, err := NormalizeResponse(data)
	if err != nil {
		return err
	}
	*r = resp.Record
	return nil
}

// Canonical returns the canonical byte encoding of rec. Two records are the same
// snapshot exactly when their canonical encodings are equal.
func Canonical(rec CaseRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// Footprint is the extended forensic metadata bundle for a case.
type Footprint struct {
	CaseID             string            `json:"case_id"`
	FileInfo           FileInfo          `json:"file_info"`
	EXIF               map[string]string `json:"exif,omitempty"`
	GPS                *GPS              `json:"gps,omitempty"`
	RiskScore          int               `json:"risk_score,omitempty"`
	RiskIndicators     []string          `json:"risk_indicators,omitempty"`
	BehavioralPatterns []string          `json:"behavioral_patterns,omitempty"`
}

// FileInfo describes the stored media file.
type FileInfo struct {
	Name      string `json:"name,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	Format    string `json:"format,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	Created   string `json:"created,omitempty"`
}

// GPS is the location embedded in the media metadata.
type GPS struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	// Coordinates is the service's display form, e.g. "12.9716, 77.5946".
	Coordinates string  `json:"coordinates,omitempty"`
	MapsURL     string  `json:"maps_url,omitempty"`
}

// HasEXIF reports whether any EXIF fields were recovered.
func (f Footprint) HasEXIF() bool { return len(f.EXIF) > 0 }

// HasGPS reports whether the media carried a location.
func (f Footprint) HasGPS() bool { return f.GPS != nil }

// Clone returns a deep copy of the bundle.
func (f Footprint) Clone() Footprint {
	out := f
	if f.EXIF != nil {
		out.EXIF = make(map[string]string, len(f.EXIF))
		for k, v := range f.EXIF {
			out.EXIF[k] = v
		}
	}
	if f.GPS != nil {
		g := *f.GPS
		out.GPS = &g
	}
	out.RiskIndicators = append([]string(nil), f.RiskIndicators...)
	out.BehavioralPatterns = append([]string(nil), f.BehavioralPatterns...)
	return out
}
