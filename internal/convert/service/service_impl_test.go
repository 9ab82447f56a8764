package service

import (
	"testing"
	"time"

	"github.com/greendigit/cnr-ingest/internal/convert/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() *Service {
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return NewServiceWithClock(zap.NewNop(), func() time.Time { return fixed })
}

func TestNormKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CPUDuration_s", "cpudurations"},
		{"cpuduration_s", "cpudurations"},
		{"WallClockTime(s)", "wallclocktimes"},
		{"TDP(W)", "tdpw"},
		{"ExecUnitID", "execunitid"},
		{"___", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normKey(tt.in), tt.in)
	}
}

func TestNormKey_Idempotent(t *testing.T) {
	for _, k := range []string{"CPUDuration_s", "WallClockTime(s)", "Site-GOCDB", "plain"} {
		once := normKey(k)
		assert.Equal(t, once, normKey(once), k)
	}
}

func TestLookup_VariantSpellings(t *testing.T) {
	entry := map[string]any{
		"CpuDuration_s": 120,
		"SiteGOCDB":     "CERN-PROD",
	}
	idx := indexKeys(entry)

	v, ok := lookup(entry, idx, "CPUDuration_s", "cpuduration_s")
	assert.True(t, ok)
	assert.Equal(t, 120, v)

	v, ok = lookup(entry, idx, "sitegocdb")
	assert.True(t, ok)
	assert.Equal(t, "CERN-PROD", v)

	_, ok = lookup(entry, idx, "NoSuchField")
	assert.False(t, ok)
}

func TestIndexKeys_DeterministicCollision(t *testing.T) {
	entry := map[string]any{
		"cpu_duration_s": 1,
		"CpuDuration_s":  2,
	}
	// Both normalize to the same key; the smaller original spelling wins no
	// matter the map iteration order.
	for i := 0; i < 50; i++ {
		idx := indexKeys(entry)
		assert.Equal(t, "CpuDuration_s", idx["cpudurations"])
	}
}

func TestCoercions(t *testing.T) {
	t.Run("toInt", func(t *testing.T) {
		assert.Nil(t, toInt(nil))
		assert.Nil(t, toInt("abc"))
		assert.Nil(t, toInt(""))
		assert.Equal(t, int64(3), *toInt("3.9"))
		assert.Equal(t, int64(3), *toInt(3.9))
		assert.Equal(t, int64(42), *toInt("42"))
		assert.Equal(t, int64(1), *toInt(true))
		assert.Equal(t, int64(0), *toInt(false))
	})

	t.Run("toFloat", func(t *testing.T) {
		assert.Nil(t, toFloat(nil))
		assert.Nil(t, toFloat("abc"))
		assert.Nil(t, toFloat(true))
		assert.Equal(t, 3.9, *toFloat("3.9"))
		assert.Equal(t, 7.0, *toFloat(7))
	})

	t.Run("toBool", func(t *testing.T) {
		assert.Nil(t, toBool(nil))
		assert.Nil(t, toBool("maybe"))
		assert.True(t, *toBool("done"))
		assert.True(t, *toBool("FINISHED"))
		assert.True(t, *toBool("yes"))
		assert.True(t, *toBool(1))
		assert.False(t, *toBool("running"))
		assert.False(t, *toBool("pending"))
		assert.False(t, *toBool(0))
		assert.False(t, *toBool(false))
	})
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 1, 15, 0, 0, 1, 0, time.UTC)

	tests := []struct {
		name string
		in   any
	}{
		{"epoch seconds", "1768435201"},
		{"epoch seconds numeric", float64(1768435201)},
		{"iso z suffix", "2026-01-15T00:00:01Z"},
		{"iso explicit offset", "2026-01-15T01:00:01+01:00"},
		{"iso no zone", "2026-01-15T00:00:01"},
		{"space separated", "2026-01-15 00:00:01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTimestamp(tt.in)
			require.NotNil(t, got)
			assert.True(t, got.Equal(want), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	t.Run("fractional space separated", func(t *testing.T) {
		got := parseTimestamp("2026-01-15 00:00:01.500000")
		require.NotNil(t, got)
		assert.Equal(t, 500*time.Millisecond, time.Duration(got.Nanosecond()))
	})

	t.Run("round trip through wire form", func(t *testing.T) {
		for _, in := range []string{"1768435201", "2026-01-15T00:00:01Z", "2026-01-15T01:00:01+01:00", "2026-01-15 00:00:01"} {
			parsed := parseTimestamp(in)
			require.NotNil(t, parsed, in)
			back := parseTimestamp(parsed.Format(time.RFC3339))
			require.NotNil(t, back, in)
			assert.True(t, back.Equal(*parsed), in)
		}
	})

	t.Run("garbage yields nil", func(t *testing.T) {
		assert.Nil(t, parseTimestamp("not-a-time"))
		assert.Nil(t, parseTimestamp(""))
		assert.Nil(t, parseTimestamp(nil))
	})
}

func TestDetectPayloadType(t *testing.T) {
	tests := []struct {
		name  string
		entry map[string]any
		want  domain.PayloadType
	}{
		{"nested network detail", map[string]any{"detail_network": map[string]any{}}, domain.PayloadNetwork},
		{"network marker", map[string]any{"AmountOfDataTransferred": 10}, domain.PayloadNetwork},
		{"cloud marker", map[string]any{"CloudType": "openstack"}, domain.PayloadCloud},
		{"cloud duration marker", map[string]any{"CpuDuration_s": 55}, domain.PayloadCloud},
		{"network beats cloud", map[string]any{"NetworkType": "lhcone", "CloudType": "openstack"}, domain.PayloadNetwork},
		{"grid fallback", map[string]any{"WallClockTime_s": 100}, domain.PayloadGrid},
		{"empty entry is grid", map[string]any{}, domain.PayloadGrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := indexKeys(tt.entry)
			assert.Equal(t, tt.want, detectPayloadType(tt.entry, idx))
		})
	}
}

func TestDefaultEventID(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 1, 0, time.UTC)
	site := "CERN-PROD"

	t.Run("numeric id reused verbatim", func(t *testing.T) {
		assert.Equal(t, int64(42), defaultEventID("42", &site, &start))
		assert.Equal(t, int64(42), defaultEventID(42, &site, &start))
	})

	t.Run("non-numeric id hashes deterministically", func(t *testing.T) {
		a := defaultEventID("job-abc", &site, &start)
		b := defaultEventID("job-abc", &site, &start)
		assert.Equal(t, a, b)
		assert.GreaterOrEqual(t, a, int64(0))
		assert.LessOrEqual(t, a, int64(0x7FFFFFFF))
	})

	t.Run("different inputs diverge", func(t *testing.T) {
		a := defaultEventID("job-abc", &site, &start)
		b := defaultEventID("job-xyz", &site, &start)
		assert.NotEqual(t, a, b)
	})

	t.Run("nil site and start are stable", func(t *testing.T) {
		a := defaultEventID("job-abc", nil, nil)
		b := defaultEventID("job-abc", nil, nil)
		assert.Equal(t, a, b)
	})
}

func TestConvert_GridExample(t *testing.T) {
	svc := newTestService()

	recs, err := svc.Convert(map[string]any{
		"ExecUnitID":     "42",
		"Site":           "CERN-PROD",
		"SubmissionTime": "2026-01-15T00:00:01Z",
		"Status":         "done",
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, domain.PayloadGrid, rec.PayloadType)
	assert.Equal(t, "detail_grid", rec.DetailTable)
	require.NotNil(t, rec.Grid)
	assert.Nil(t, rec.Cloud)
	assert.Nil(t, rec.Network)

	fact := rec.Fact
	assert.Equal(t, int64(42), fact.EventID)
	require.NotNil(t, fact.Site)
	assert.Equal(t, "CERN-PROD", *fact.Site)
	require.NotNil(t, fact.ExecUnitFinished)
	assert.True(t, *fact.ExecUnitFinished)
	require.NotNil(t, fact.EventStartTime)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 1, 0, time.UTC), fact.EventStartTime.UTC())
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), fact.RecordedAt)
}

func TestConvert_CloudVariantSpelling(t *testing.T) {
	svc := newTestService()

	recs, err := svc.Convert(map[string]any{
		"ExecUnitID":    "vm-0099",
		"SiteGOCDB":     "IN2P3-CLOUD",
		"CloudType":     "openstack",
		"CpuDuration_s": "3600.7",
		"StartExecTime": "1768435201",
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, domain.PayloadCloud, rec.PayloadType)
	require.NotNil(t, rec.Cloud)
	require.NotNil(t, rec.Cloud.CPUDurationS)
	assert.Equal(t, int64(3600), *rec.Cloud.CPUDurationS)
	require.NotNil(t, rec.Cloud.CloudType)
	assert.Equal(t, "openstack", *rec.Cloud.CloudType)

	// Non-numeric exec unit id falls back to the checksum identity.
	assert.GreaterOrEqual(t, rec.Fact.EventID, int64(0))
	require.NotNil(t, rec.Fact.StartExecTime)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 1, 0, time.UTC), rec.Fact.StartExecTime.UTC())
	// No submission time, so the event start falls back to exec start.
	require.NotNil(t, rec.Fact.EventStartTime)
	assert.True(t, rec.Fact.EventStartTime.Equal(*rec.Fact.StartExecTime))
}

func TestConvert_NestedNetworkDetail(t *testing.T) {
	svc := newTestService()

	recs, err := svc.Convert(map[string]any{
		"ExecUnitID": "7",
		"Site":       "DESY-HH",
		"detail_network": map[string]any{
			"AmountOfDataTransferred": 1024,
			"NetworkType":             "lhcone",
			"DestinationExecUnitID":   "9",
		},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, domain.PayloadNetwork, rec.PayloadType)
	require.NotNil(t, rec.Network)
	require.NotNil(t, rec.Network.AmountOfDataTransferred)
	assert.Equal(t, int64(1024), *rec.Network.AmountOfDataTransferred)
	require.NotNil(t, rec.Network.NetworkType)
	assert.Equal(t, "lhcone", *rec.Network.NetworkType)
	require.NotNil(t, rec.Network.DestinationExecUnitID)
	assert.Equal(t, "9", *rec.Network.DestinationExecUnitID)
}

func TestConvert_NetworkWithoutExecUnitID(t *testing.T) {
	svc := newTestService()

	payload := map[string]any{
		"Site": "DESY-HH",
		"detail_network": map[string]any{
			"AmountOfDataTransferred": 1024,
			"NetworkType":             "WAN",
		},
	}
	recs, err := svc.Convert(payload)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, domain.PayloadNetwork, rec.PayloadType)
	require.NotNil(t, rec.Network)
	require.NotNil(t, rec.Network.AmountOfDataTransferred)
	assert.Equal(t, int64(1024), *rec.Network.AmountOfDataTransferred)

	// No numeric identifier: the id is checksum-derived, and converting the
	// same payload again yields the same id.
	assert.GreaterOrEqual(t, rec.Fact.EventID, int64(0))
	again, err := svc.Convert(payload)
	require.NoError(t, err)
	assert.Equal(t, rec.Fact.EventID, again[0].Fact.EventID)
}

func TestConvert_PayloadShapes(t *testing.T) {
	svc := newTestService()

	t.Run("array of objects", func(t *testing.T) {
		recs, err := svc.Convert([]any{
			map[string]any{"ExecUnitID": "1"},
			"not an object",
			map[string]any{"ExecUnitID": "2"},
		})
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("nil payload", func(t *testing.T) {
		recs, err := svc.Convert(nil)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("scalar payload rejected", func(t *testing.T) {
		_, err := svc.Convert("just a string")
		assert.ErrorIs(t, err, domain.ErrUnsupportedPayload)
	})
}

func TestConvert_StatusInference(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		status string
		want   *bool
	}{
		{"done", boolPtr(true)},
		{"Finished", boolPtr(true)},
		{"success", boolPtr(true)},
		{"succeeded", boolPtr(true)},
		{"running", boolPtr(false)},
		{"pending", boolPtr(false)},
		{"held", nil},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			recs, err := svc.Convert(map[string]any{"ExecUnitID": "1", "Status": tt.status})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			if tt.want == nil {
				assert.Nil(t, recs[0].Fact.ExecUnitFinished)
			} else {
				require.NotNil(t, recs[0].Fact.ExecUnitFinished)
				assert.Equal(t, *tt.want, *recs[0].Fact.ExecUnitFinished)
			}
		})
	}

	t.Run("explicit flag beats status", func(t *testing.T) {
		recs, err := svc.Convert(map[string]any{
			"ExecUnitID":       "1",
			"Status":           "running",
			"ExecUnitFinished": true,
		})
		require.NoError(t, err)
		require.NotNil(t, recs[0].Fact.ExecUnitFinished)
		assert.True(t, *recs[0].Fact.ExecUnitFinished)
	})
}

func TestBuildEnvelope_AllDetailKeysPresent(t *testing.T) {
	svc := newTestService()

	recs, err := svc.Convert(map[string]any{
		"ExecUnitID":    "42",
		"Site":          "CERN-PROD",
		"StartExecTime": "2026-01-15T00:00:00Z",
		"StopExecTime":  "2026-01-15T01:00:00Z",
	})
	require.NoError(t, err)
	env := BuildEnvelope(recs[0])

	require.NotNil(t, env.DetailGrid)
	require.NotNil(t, env.DetailCloud)
	require.NotNil(t, env.DetailNetwork)
	assert.Equal(t, "detail_grid", env.DetailTable)
	assert.Equal(t, domain.PayloadGrid, env.Sites.SiteType)
	require.NotNil(t, env.DurationS)
	assert.Equal(t, 3600.0, *env.DurationS)

	// The unpopulated detail branches are zero-valued, not shared state.
	assert.Nil(t, env.DetailCloud.CloudType)
	assert.Nil(t, env.DetailNetwork.NetworkType)
}

func boolPtr(b bool) *bool { return &b }
