package transfer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/idilsaglam/tracker/internal/checklist"
	"github.com/idilsaglam/tracker/internal/gate"
	"github.com/idilsaglam/tracker/internal/model"
	"github.com/idilsaglam/tracker/internal/store"
	"github.com/idilsaglam/tracker/internal/store/sqlitestore"
	"github.com/idilsaglam/tracker/internal/syncer"
	"github.com/idilsaglam/tracker/internal/transfer"
)

func newService(t *testing.T, ids ...string) (*transfer.Service, *sqlitestore.Store, *checklist.Checklist) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlitestore.Open(ctx, filepath.Join(t.TempDir(), "progress.db"), 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	items := make([]model.Item, len(ids))
	for i, id := range ids {
		items[i] = model.Item{ID: id}
	}
	list := checklist.New("problem", items)
	gt := gate.New[store.Store]()
	gt.Resolve(st)
	s := syncer.New(gt, list, nil, syncer.Options{})
	t.Cleanup(func() { s.Close(ctx) })

	return transfer.New(s, nil), st, list
}

func TestExport_EmptyStoreIsNothingToExport(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	svc, _, _ := newService(t, "a")

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf)
	g.Expect(err).Should(MatchError(transfer.ErrNothingToExport))
	g.Expect(n).Should(BeZero())
	g.Expect(buf.Len()).Should(BeZero())
}

func TestExportFile_EmptyStoreCreatesNoFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	svc, _, _ := newService(t, "a")

	path := filepath.Join(t.TempDir(), "out.json")
	_, _, err := svc.ExportFile(context.Background(), path)
	g.Expect(err).Should(MatchError(transfer.ErrNothingToExport))
	_, statErr := os.Stat(path)
	g.Expect(os.IsNotExist(statErr)).Should(BeTrue())
}

func TestExport_WritesIndentedRecords(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	svc, st, _ := newService(t, "a", "b")
	ctx := context.Background()

	g.Expect(st.Put(ctx, model.Record{ID: "a", Completed: true, Timestamp: 10})).Should(Succeed())

	var buf bytes.Buffer
	n, err := svc.Export(ctx, &buf)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(n).Should(Equal(1))
	g.Expect(buf.String()).Should(Equal("[\n  {\n    \"id\": \"a\",\n    \"completed\": true,\n    \"timestamp\": 10\n  }\n]\n"))
}

func TestImport_SkipsInvalidRecords(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	svc, st, list := newService(t, "a", "b")
	ctx := context.Background()

	g.Expect(st.Put(ctx, model.Record{ID: "stale", Completed: true})).Should(Succeed())

	in := `[{"id":"a","completed":true,"timestamp":1},{"id":"b","completed":"yes"}]`
	res, err := svc.Import(ctx, strings.NewReader(in))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(res.Imported).Should(Equal(1))
	g.Expect(res.Invalid).Should(Equal(1))

	all, err := st.GetAll(ctx)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(all).Should(Equal([]model.Record{{ID: "a", Completed: true, Timestamp: 1}}))

	a, _ := list.Checked("a")
	g.Expect(a).Should(BeTrue())
	g.Expect(list.Controls()[0].Completed).Should(BeTrue())
}

func TestImport_FormatErrorsWriteNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not json", `{{`, "not valid JSON"},
		{"object", `{"id":"a","completed":true}`, "expected a list"},
		{"empty list", `[]`, "no records"},
		{"first not object", `[1, {"id":"a","completed":true}]`, "not an object"},
		{"first lacks completed", `[{"id":"a"}, {"id":"b","completed":true}]`, "no completed field"},
		{"first lacks id", `[{"completed":true}]`, "no id field"},
		{"trailing garbage", `[{"id":"a","completed":true}] junk`, "unexpected data after"},
		{"second value", `[{"id":"a","completed":true}][]`, "unexpected data after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)
			svc, st, _ := newService(t, "a")
			ctx := context.Background()
			g.Expect(st.Put(ctx, model.Record{ID: "keep", Completed: true, Timestamp: 3})).Should(Succeed())

			_, err := svc.Import(ctx, strings.NewReader(tt.in))
			var ferr *transfer.FormatError
			g.Expect(err).Should(BeAssignableToTypeOf(ferr))
			g.Expect(err.Error()).Should(ContainSubstring(tt.want))

			all, err := st.GetAll(ctx)
			g.Expect(err).ShouldNot(HaveOccurred())
			g.Expect(all).Should(Equal([]model.Record{{ID: "keep", Completed: true, Timestamp: 3}}))
		})
	}
}

func TestRoundTrip_ReproducesRecords(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	ctx := context.Background()

	src, srcStore, _ := newService(t, "a", "b", "c")
	want := []model.Record{
		{ID: "a", Completed: true, Timestamp: 100},
		{ID: "b", Completed: false, Timestamp: 200},
		{ID: "orphan", Completed: true, Timestamp: 300},
	}
	g.Expect(store.PutAll(ctx, srcStore, want)).Should(Succeed())

	var buf bytes.Buffer
	_, err := src.Export(ctx, &buf)
	g.Expect(err).ShouldNot(HaveOccurred())

	dst, dstStore, dstList := newService(t, "a", "b", "c")
	g.Expect(dstStore.Put(ctx, model.Record{ID: "c", Completed: true})).Should(Succeed())
	res, err := dst.Import(ctx, &buf)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(res.Imported).Should(Equal(3))

	got, err := dstStore.GetAll(ctx)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(got).Should(Equal(want))
	g.Expect(dstList.CheckedCount()).Should(Equal(1))
}

func TestDecode_ToleratesExtraFieldsAndFillsTimestamp(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	now := time.UnixMilli(42)

	in := `[{"id":"a","completed":false,"note":"x"},{"id":"","completed":true},{"id":"c","completed":true,"timestamp":"soon"}]` + "\n\n"
	recs, invalid, err := transfer.Decode(strings.NewReader(in), now)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(invalid).Should(Equal(1))
	g.Expect(recs).Should(Equal([]model.Record{
		{ID: "a", Completed: false, Timestamp: 42},
		{ID: "c", Completed: true, Timestamp: 42},
	}))
}

func TestEncode_EmptyIsEmptyArray(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var buf bytes.Buffer
	g.Expect(transfer.Encode(&buf, nil)).Should(Succeed())
	var out []model.Record
	g.Expect(json.Unmarshal(buf.Bytes(), &out)).Should(Succeed())
	g.Expect(out).Should(BeEmpty())
}

func TestExportFile_AndPeek(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	svc, st, _ := newService(t, "a")
	ctx := context.Background()

	g.Expect(st.Put(ctx, model.Record{ID: "a", Completed: true, Timestamp: 1})).Should(Succeed())
	path := filepath.Join(t.TempDir(), "out.json")
	got, n, err := svc.ExportFile(ctx, path)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(got).Should(Equal(path))
	g.Expect(n).Should(Equal(1))

	valid, invalid, err := transfer.Peek(path)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(valid).Should(Equal(1))
	g.Expect(invalid).Should(BeZero())
}

func TestDefaultFileName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(transfer.DefaultFileName(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))).
		Should(Equal("progress-2026-10-19.json"))
}
