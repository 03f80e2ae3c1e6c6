package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

func newTestStore(t testing.TB) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleIdentity() model.DriveIdentity {
	return model.DriveIdentity{
		Key:       "WDWCC7K1234567|WDCWD40EFRX68N32N0",
		Serial:    "WD-WCC7K1234567",
		Model:     "WDC WD40EFRX-68N32N0",
		Firmware:  "82.00A82",
		Interface: model.InterfaceSATA,
		Paths:     []string{"/dev/sda"},
	}
}

func sampleEntry(ts int64) model.HistoryEntry {
	return model.HistoryEntry{
		Timestamp:    ts,
		Score:        92,
		Status:       model.StatusGreen,
		Reallocated:  0,
		Pending:      0,
		PowerOnHours: 21340,
		Temperature:  34,
		IOLoad:       3.5,
	}
}

func TestNew(t *testing.T) {
	s := newTestStore(t)
	assert.NotNil(t, s)
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestUpsertDrive(t *testing.T) {
	s := newTestStore(t)
	id := sampleIdentity()

	require.NoError(t, s.UpsertDrive(id, 1000, 1000))

	states, err := s.LoadDrives()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, id, states[0].Identity)
	assert.Equal(t, int64(1000), states[0].FirstSeen)
	assert.Equal(t, int64(1000), states[0].LastSeen)
	assert.Nil(t, states[0].Snapshot, "no snapshot stored yet")

	// Update: new path list and last_seen; first_seen must survive.
	id.Paths = []string{"/dev/sdb"}
	require.NoError(t, s.UpsertDrive(id, 2000, 2000))

	states, err = s.LoadDrives()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, []string{"/dev/sdb"}, states[0].Identity.Paths)
	assert.Equal(t, int64(1000), states[0].FirstSeen, "first_seen kept on update")
	assert.Equal(t, int64(2000), states[0].LastSeen)
}

func TestInsertHistoryEntry_Roundtrip(t *testing.T) {
	s := newTestStore(t)
	key := sampleIdentity().Key

	e := sampleEntry(5000)
	require.NoError(t, s.InsertHistoryEntry(key, e))

	got, err := s.QueryHistory(key, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
}

func TestInsertHistoryEntry_IdempotentByTimestamp(t *testing.T) {
	s := newTestStore(t)
	key := sampleIdentity().Key

	require.NoError(t, s.InsertHistoryEntry(key, sampleEntry(5000)))
	require.NoError(t, s.InsertHistoryEntry(key, sampleEntry(5000)))

	got, err := s.QueryHistory(key, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1, "same cycle timestamp must not duplicate")
}

func TestQueryHistory_SinceFilter(t *testing.T) {
	s := newTestStore(t)
	key := sampleIdentity().Key

	for _, ts := range []int64{100, 200, 300, 400} {
		require.NoError(t, s.InsertHistoryEntry(key, sampleEntry(ts)))
	}
	// A second drive's rows must not leak in.
	require.NoError(t, s.InsertHistoryEntry("OTHER|DRIVE", sampleEntry(250)))

	got, err := s.QueryHistory(key, 200)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(200), got[0].Timestamp)
	assert.Equal(t, int64(400), got[2].Timestamp)
}

func TestRecentHistory(t *testing.T) {
	s := newTestStore(t)
	key := sampleIdentity().Key

	for ts := int64(1); ts <= 10; ts++ {
		require.NoError(t, s.InsertHistoryEntry(key, sampleEntry(ts*100)))
	}

	got, err := s.RecentHistory(key, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(800), got[0].Timestamp, "newest three, oldest first")
	assert.Equal(t, int64(1000), got[2].Timestamp)
}

func TestInsertSnapshot_LoadsNewest(t *testing.T) {
	s := newTestStore(t)
	id := sampleIdentity()
	require.NoError(t, s.UpsertDrive(id, 1000, 2000))

	temp1, temp2 := 31, 37
	old := &model.SmartSnapshot{
		Identity:    id,
		Timestamp:   1000,
		Attributes:  []model.AttributeRecord{{ID: 5, Name: "Reallocated Sectors Count", RawValue: 0}},
		Temperature: &temp1,
	}
	newest := &model.SmartSnapshot{
		Identity:    id,
		Timestamp:   2000,
		Attributes:  []model.AttributeRecord{{ID: 5, Name: "Reallocated Sectors Count", RawValue: 3}},
		Temperature: &temp2,
	}
	require.NoError(t, s.InsertSnapshot(old))
	require.NoError(t, s.InsertSnapshot(newest))

	states, err := s.LoadDrives()
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.NotNil(t, states[0].Snapshot)
	assert.Equal(t, int64(2000), states[0].Snapshot.Timestamp)
	assert.Equal(t, int64(3), states[0].Snapshot.Attributes[0].RawValue)
	require.NotNil(t, states[0].Snapshot.Temperature)
	assert.Equal(t, 37, *states[0].Snapshot.Temperature)
}

func TestLoadDrives_MultipleOrdered(t *testing.T) {
	s := newTestStore(t)

	a := sampleIdentity()
	b := model.DriveIdentity{
		Key:       "S5GXNX0T123456|SAMSUNGSSD980PRO1TB",
		Serial:    "S5GXNX0T123456",
		Model:     "Samsung SSD 980 PRO 1TB",
		Interface: model.InterfaceNVMe,
		Paths:     []string{"/dev/nvme0"},
	}
	require.NoError(t, s.UpsertDrive(b, 1, 1))
	require.NoError(t, s.UpsertDrive(a, 2, 2))

	states, err := s.LoadDrives()
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, b.Key, states[0].Identity.Key, "sorted by key")
	assert.Equal(t, a.Key, states[1].Identity.Key)
}

func TestInsertAlert(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertAlert(time.Now().Unix(), "drive_red",
		sampleIdentity().Key, "WDC WD40EFRX-68N32N0", "health status red (score 31)", "critical")
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM alert_log").Scan(&count))
	assert.Equal(t, 1, count)
}

func BenchmarkQueryHistory(b *testing.B) {
	s := newTestStore(b)
	key := sampleIdentity().Key

	base := time.Now().Unix()
	for i := range 1000 {
		if err := s.InsertHistoryEntry(key, sampleEntry(base+int64(i*60))); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for b.Loop() {
		if _, err := s.QueryHistory(key, base+500*60); err != nil {
			b.Fatal(err)
		}
	}
}
