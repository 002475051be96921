package store_test

import (
	"path/filepath"
	"testing"

	"github.com/openclaw/audioqr/qrgen"
	"github.com/openclaw/audioqr/store"
)

func openStore(t *testing.T) *store.HistoryStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAssignsIDAndTimestamp(t *testing.T) {
	s := openStore(t)

	rec := &store.Record{Source: "output.mp4", PayloadBytes: 10, EncodedLength: 16, Version: 20, ImageSize: 210}
	if err := s.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.ID == "" {
		t.Error("id not assigned")
	}
	if rec.CreatedAt == 0 {
		t.Error("created_at not assigned")
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := openStore(t)

	for i, src := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		rec := &store.Record{
			Source:       src,
			PayloadBytes: 2240,
			Truncated:    i == 1,
			Version:      20 + i,
			CreatedAt:    int64(1000 + i),
		}
		if err := s.Save(rec); err != nil {
			t.Fatalf("save %s: %v", src, err)
		}
	}

	recs, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Source != "c.mp4" || recs[1].Source != "b.mp4" {
		t.Errorf("order = %s, %s; want c.mp4, b.mp4", recs[0].Source, recs[1].Source)
	}
	if !recs[1].Truncated || recs[0].Truncated {
		t.Errorf("truncated flags not preserved: %+v", recs)
	}
	if recs[0].Version != 22 {
		t.Errorf("version = %d, want 22", recs[0].Version)
	}
}

func TestRecentEmpty(t *testing.T) {
	recs, err := openStore(t).Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}

func TestFromResult(t *testing.T) {
	res := &qrgen.Result{
		PayloadBytes:  2240,
		Truncated:     true,
		EncodedLength: 2988,
		Version:       27,
		ImageSize:     258,
		OutputPath:    "audioQR_sample.png",
		Digest:        "d1",
	}

	rec := store.FromResult("output.mp4", res)
	s := openStore(t)
	if err := s.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	recs, err := s.Recent(1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	got := recs[0]
	if got.Source != "output.mp4" || got.OutputPath != res.OutputPath || got.Digest != "d1" ||
		got.PayloadBytes != 2240 || !got.Truncated || got.EncodedLength != 2988 ||
		got.Version != 27 || got.ImageSize != 258 {
		t.Errorf("record = %+v", got)
	}
}
