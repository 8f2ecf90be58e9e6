package complaint

import (
	"strings"
	"testing"
	"time"

	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aiRecord(confidence float64) casefile.CaseRecord {
	return casefile.CaseRecord{
		CaseID:    "CASE-9",
		Filename:  "clip.mp4",
		MediaType: casefile.MediaVideo,
		Timestamp: time.Date(2026, 3, 4, 22, 45, 10, 0, time.UTC),
		Detection: casefile.Detection{IsAIGenerated: true, Confidence: confidence},
	}
}

func TestDraftRendersConstantsAndPercent(t *testing.T) {
	d := Drafter{Location: time.UTC}
	draft, err := d.Draft(aiRecord(0.92))
	require.NoError(t, err)

	assert.Equal(t, Category, draft.Category)
	assert.Equal(t, Location, draft.Location)
	assert.Equal(t, PortalURL, draft.PortalURL)
	assert.Equal(t, "2026-03-04", draft.Date)
	assert.Equal(t, "22:45:10", draft.Time)
	assert.Equal(t, 92, draft.Confidence)
	assert.Equal(t, 92, draft.RiskScore)
	assert.Contains(t, draft.Description, "AI-generated with 92% confidence")
	assert.True(t, strings.HasPrefix(draft.Description, "I am reporting a cyber crime"))
	assert.Equal(t, Evidence, draft.Evidence)
}

func TestDraftUsesDrafterLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	draft, err := Drafter{Location: ist}.Draft(aiRecord(0.92))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", draft.Date)
	assert.Equal(t, "04:15:10", draft.Time)
}

func TestRiskScoreFloor(t *testing.T) {
	assert.Equal(t, 92, RiskScore(0.92))
	assert.Equal(t, 85, RiskScore(0.60))
	assert.Equal(t, 85, RiskScore(0.85))
	assert.Equal(t, 100, RiskScore(1))
}

func TestDraftLowConfidenceKeepsPercentButFloorsRisk(t *testing.T) {
	draft, err := Drafter{}.Draft(aiRecord(0.60))
	require.NoError(t, err)
	assert.Equal(t, 60, draft.Confidence)
	assert.Equal(t, 85, draft.RiskScore)
	assert.Contains(t, draft.Description, "60% confidence")
}

func TestDraftIsDeterministic(t *testing.T) {
	d := Drafter{Location: time.UTC}
	rec := aiRecord(0.735)
	first, err := d.Draft(rec)
	require.NoError(t, err)
	second, err := d.Draft(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Description, second.Description)
}

func TestDraftRejectsAuthenticMedia(t *testing.T) {
	rec := aiRecord(0.99)
	rec.Detection.IsAIGenerated = false

	_, err := Drafter{}.Draft(rec)
	require.Error(t, err)
	assert.True(t, IsNotAIGenerated(err))
	assert.ErrorIs(t, err, casefile.ErrGuard)
}

func TestDraftEvidenceIsACopy(t *testing.T) {
	draft, err := Drafter{}.Draft(aiRecord(0.9))
	require.NoError(t, err)
	draft.Evidence[0] = "changed"
	assert.Equal(t, "Uploaded media file", Evidence[0])
}
