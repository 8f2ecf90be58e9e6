package footprint

import (
	"context"
	"fmt"
	"testing"

	"github.com/cybershield-india/evidence-console/internal/casefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundle = `{
	"case_id": "CASE-5",
	"metadata": {
		"file_info": {"filename": "selfie.jpg", "size_mb": 2, "format": "JPEG", "created": "2026-01-02"},
		"exif_data": {
			"Make": "Canon",
			"ISO": 200,
			"gps": {"coordinates": "12.9716, 77.5946", "maps_url": "https://maps.google.com/?q=12.9716,77.5946", "latitude": 12.9716, "longitude": 77.5946}
		}
	},
	"network_indicators": {
		"risk_score": 78,
		"behavioral_patterns": ["Unnatural pixel smoothing patterns", "GAN-style texture blending"]
	}
}`

type fakeSource struct {
	payload string
	err     error
	calls   int
}

func (f *fakeSource) GetFootprint(ctx context.Context, caseID string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.payload), nil
}

func TestDecodeBundle(t *testing.T) {
	fp, err := Decode([]byte(bundle))
	require.NoError(t, err)

	assert.Equal(t, "CASE-5", fp.CaseID)
	assert.Equal(t, "selfie.jpg", fp.FileInfo.Name)
	assert.Equal(t, int64(2*1024*1024), fp.FileInfo.SizeBytes)
	assert.Equal(t, "JPEG", fp.FileInfo.Format)
	assert.Equal(t, "2026-01-02", fp.FileInfo.Created)
	assert.Equal(t, map[string]string{"Make": "Canon", "ISO": "200"}, fp.EXIF)
	require.True(t, fp.HasGPS())
	assert.Equal(t, "12.9716, 77.5946", fp.GPS.Coordinates)
	assert.InDelta(t, 77.5946, fp.GPS.Longitude, 1e-9)
	assert.Contains(t, fp.GPS.MapsURL, "maps.google.com")
	assert.Equal(t, 78, fp.RiskScore)
	assert.Len(t, fp.BehavioralPatterns, 2)
}

func TestDecodeWithoutGPSOrEXIF(t *testing.T) {
	fp, err := Decode([]byte(`{"case_id":"CASE-6","metadata":{"file_info":{"name":"a.png","size_bytes":1234}}}`))
	require.NoError(t, err)
	assert.False(t, fp.HasGPS())
	assert.False(t, fp.HasEXIF())
	assert.Equal(t, int64(1234), fp.FileInfo.SizeBytes)
}

func TestDecodeRejectsNonObject(t *testing.T) {
	_, err := Decode([]byte(`[1,2]`))
	assert.ErrorIs(t, err, casefile.ErrValidation)
}

func TestFetchFillsCaseID(t *testing.T) {
	l := New(&fakeSource{payload: `{"metadata":{}}`}, nil)
	fp, err := l.Fetch(context.Background(), "CASE-7")
	require.NoError(t, err)
	assert.Equal(t, "CASE-7", fp.CaseID)
}

func TestFetchRejectsMismatchedCase(t *testing.T) {
	l := New(&fakeSource{payload: bundle}, nil)
	_, err := l.Fetch(context.Background(), "CASE-1")
	assert.ErrorIs(t, err, casefile.ErrValidation)
}

func TestFetchPropagatesErrorKinds(t *testing.T) {
	l := New(&fakeSource{err: fmt.Errorf("%w: 404", casefile.ErrNotFound)}, nil)
	_, err := l.Fetch(context.Background(), "CASE-5")
	assert.ErrorIs(t, err, casefile.ErrNotFound)

	l = New(&fakeSource{err: fmt.Errorf("%w: refused", casefile.ErrNetwork)}, nil)
	_, err = l.Fetch(context.Background(), "CASE-5")
	assert.ErrorIs(t, err, casefile.ErrNetwork)
}

func TestFetchRequiresCaseID(t *testing.T) {
	src := &fakeSource{payload: bundle}
	_, err := New(src, nil).Fetch(context.Background(), " ")
	assert.ErrorIs(t, err, casefile.ErrGuard)
	assert.Zero(t, src.calls)
}

func TestFetchAlwaysRefetches(t *testing.T) {
	src := &fakeSource{payload: bundle}
	l := New(src, nil)
	for i := 0; i < 3; i++ {
		_, err := l.Fetch(context.Background(), "CASE-5")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
}
