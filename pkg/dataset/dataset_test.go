package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flickrharvest/pkg/flickr"
	"flickrharvest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, owner, url string) Record {
	return Record{ID: id, Owner: owner, AssetURL: url}
}

func TestDedupeKeepsFirstSeen(t *testing.T) {
	in := []Record{
		rec("1", "a", "u1"),
		{ID: "2", Owner: "b", AssetURL: "u2", Title: "first"},
		rec("3", "c", "u3"),
		{ID: "2", Owner: "b", AssetURL: "u2", Title: "second"},
		rec("1", "a", "u1"),
	}

	out, removed := Dedupe(in)
	assert.Equal(t, 2, removed)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "first", out[1].Title)
}

func TestDedupeIsIdempotent(t *testing.T) {
	in := []Record{rec("1", "a", "u1"), rec("2", "a", "u1"), rec("3", "b", "u3"), rec("3", "b", "u3")}

	once, _ := Dedupe(in)
	twice, removed := Dedupe(once)
	assert.Equal(t, once, twice)
	assert.Zero(t, removed)
}

func TestDedupeEmpty(t *testing.T) {
	out, removed := Dedupe(nil)
	assert.Empty(t, out)
	assert.Zero(t, removed)
}

type fakeLookup struct {
	calls    map[string]int
	profiles map[string]flickr.OwnerProfile
	fail     map[string]bool
}

func (f *fakeLookup) LookupOwner(ctx context.Context, id string) (flickr.OwnerProfile, error) {
	f.calls[id]++
	if f.fail[id] {
		return flickr.OwnerProfile{}, errors.New("lookup failed")
	}
	return f.profiles[id], nil
}

func TestEnrichLooksUpEachOwnerOnce(t *testing.T) {
	lookup := &fakeLookup{
		calls: map[string]int{},
		profiles: map[string]flickr.OwnerProfile{
			"a": {ID: "a", Hometown: "Oslo"},
			"b": {ID: "b"},
		},
		fail: map[string]bool{"c": true},
	}
	var messages []string
	e := &Enricher{Lookup: lookup, Logger: logger.NewNopLogger(), Progress: func(m string) { messages = append(messages, m) }}

	in := []Record{rec("1", "a", "u1"), rec("2", "b", "u2"), rec("3", "a", "u3"), rec("4", "c", "u4"), rec("5", "", "u5")}
	out := e.Enrich(context.Background(), in)

	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, lookup.calls)
	assert.Equal(t, "Oslo", out[0].OwnerHometown)
	assert.Empty(t, out[1].OwnerHometown)
	assert.Equal(t, "Oslo", out[2].OwnerHometown)
	assert.Empty(t, out[3].OwnerHometown, "failed lookup leaves field unset")
	assert.Empty(t, in[0].OwnerHometown, "input must not be modified")
	assert.NotEmpty(t, messages)
}

func TestEnrichStopsWhenCancelled(t *testing.T) {
	lookup := &fakeLookup{calls: map[string]int{}, profiles: map[string]flickr.OwnerProfile{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := (&Enricher{Lookup: lookup, Logger: logger.NewNopLogger()}).Enrich(ctx, []Record{rec("1", "a", "u1")})
	assert.Len(t, out, 1)
	assert.Empty(t, lookup.calls)
}

func TestWriteCSV(t *testing.T) {
	d := &Dataset{Records: []Record{{
		ID: "101", Owner: "11@N01", Latitude: 51.5, Longitude: -0.125,
		TakenAt: time.Date(2020, 1, 1, 12, 30, 0, 0, time.UTC), Accuracy: 16,
		Title: "Bridge, at dusk", Tags: "bridge river", OwnerName: "Ann",
		AssetURL: "https://live.staticflickr.com/1/101_abc_b.jpg", OwnerHometown: "London",
	}}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, d))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{
		"101", "11@N01", "", "51.5", "-0.125", "2020-01-01 12:30:00", "16",
		"Bridge, at dusk", "bridge river", "Ann",
		"https://live.staticflickr.com/1/101_abc_b.jpg", "", "London",
	}, rows[1])
}

func TestSaveCSVCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dataset.csv")
	require.NoError(t, SaveCSV(path, &Dataset{}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "id,owner,place")
}

func TestFromPhoto(t *testing.T) {
	p := flickr.Photo{
		ID: "9", Owner: "o", PlaceID: "pl", Latitude: 1.5, Longitude: 2.5, Accuracy: 16,
		DateTaken: "2019-05-04 10:00:00", Title: "t", Tags: "x y", OwnerName: "n",
	}
	r := FromPhoto(p, "url")
	assert.Equal(t, "url", r.AssetURL)
	assert.Equal(t, 1.5, r.Latitude)
	assert.Equal(t, time.Date(2019, 5, 4, 10, 0, 0, 0, time.UTC), r.TakenAt)
	assert.Equal(t, "pl", r.Place)
}
