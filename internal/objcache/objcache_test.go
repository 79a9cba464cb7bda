package objcache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/yourorg/scene-data/internal/types"
)

func partial(id types.ObjectID, path string) types.ObjectData {
	return types.ObjectData{ID: id, Path: path, Type: types.NodeLeaf}
}

func full(id types.ObjectID, name string) types.ObjectData {
	return types.ObjectData{
		ID:          id,
		Path:        "root/" + name,
		Type:        types.NodeLeaf,
		Name:        name,
		Description: "desc " + name,
		URL:         "https://example.com/" + name,
		Properties:  []types.Property{{"Material", "Steel"}},
		Bounds:      &types.Bounds{Sphere: types.BoundingSphere{Radius: 2}},
	}
}

func TestMergeFullTwiceIsIdempotent(t *testing.T) {
	c := New(nil, nil)
	first := c.Merge(full(1, "pump"), true)
	before := first.Data()
	second := c.Merge(full(1, "pump"), true)
	if first != second {
		t.Fatalf("merge returned a different handle")
	}
	if !reflect.DeepEqual(before, second.Data()) {
		t.Fatalf("second merge changed fields: %+v -> %+v", before, second.Data())
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestPartialThenFullUpgradesInPlace(t *testing.T) {
	c := New(nil, nil)
	held := c.Merge(partial(7, "root/a"), false)
	if held.Full() {
		t.Fatalf("partial record reported as full")
	}
	if held.Data().Name != "" {
		t.Fatalf("partial record has a name")
	}

	up := c.Merge(full(7, "valve"), true)
	if up != held {
		t.Fatalf("identity not preserved")
	}
	d := held.Data()
	if !held.Full() || d.Name != "valve" || d.Path != "root/valve" || d.URL == "" || len(d.Properties) != 1 {
		t.Fatalf("held reference did not observe upgrade: %+v", d)
	}
}

func TestPartialAfterFullLeavesFields(t *testing.T) {
	c := New(nil, nil)
	o := c.Merge(full(3, "tank"), true)
	c.Merge(partial(3, "somewhere/else"), false)
	if got := o.Data().Path; got != "root/tank" {
		t.Fatalf("path overwritten by partial merge: %q", got)
	}
	if !o.Full() {
		t.Fatalf("partial merge downgraded record")
	}
}

func TestLoaderBinding(t *testing.T) {
	var c *Cache
	var calls int
	load := func(ctx context.Context, id types.ObjectID) (*Object, error) {
		calls++
		return c.Merge(full(id, "loaded"), true), nil
	}
	c = New(load, nil)

	o := c.Merge(partial(9, "p"), false)
	got, err := o.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != o || calls != 1 || got.Data().Name != "loaded" {
		t.Fatalf("load: same=%v calls=%d data=%+v", got == o, calls, got.Data())
	}
	// now complete: the loader is a no-op
	if _, err := o.Load(context.Background()); err != nil || calls != 1 {
		t.Fatalf("complete record loaded again: calls=%d err=%v", calls, err)
	}
}

func TestSaveRequiresFullRecord(t *testing.T) {
	var saved types.ObjectData
	c := New(nil, func(ctx context.Context, d types.ObjectData) error {
		saved = d
		return nil
	})
	o := c.Merge(partial(4, "p"), false)
	if err := o.Save(context.Background()); !errors.Is(err, ErrNotHydrated) {
		t.Fatalf("err = %v; want ErrNotHydrated", err)
	}
	c.Merge(full(4, "pipe"), true)
	if err := o.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if saved.Name != "pipe" || saved.ID != 4 {
		t.Fatalf("saved %+v", saved)
	}
}

func TestDescendantsFromWire(t *testing.T) {
	c := New(nil, nil)
	rec := partial(5, "p")
	rec.Descendants = []types.ObjectID{6, 7}
	o := c.Merge(rec, false)
	ids, ok := o.Descendants()
	if !ok || len(ids) != 2 {
		t.Fatalf("descendants = %v, %v", ids, ok)
	}

	o2 := c.Merge(partial(8, "q"), false)
	if _, ok := o2.Descendants(); ok {
		t.Fatalf("descendants known without data")
	}
	o2.SetDescendants(nil)
	ids, ok = o2.Descendants()
	if !ok || ids == nil || len(ids) != 0 {
		t.Fatalf("empty descendants not cached: %v %v", ids, ok)
	}
}

func TestConcurrentMergesKeepOneHandle(t *testing.T) {
	c := New(nil, nil)
	const workers = 8
	handles := make([]*Object, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if j%2 == 0 {
					handles[i] = c.Merge(partial(42, "p"), false)
				} else {
					handles[i] = c.Merge(full(42, "x"), true)
				}
			}
		}(i)
	}
	wg.Wait()
	for _, h := range handles[1:] {
		if h != handles[0] {
			t.Fatalf("concurrent merges produced distinct handles")
		}
	}
	if !handles[0].Full() {
		t.Fatalf("record not upgraded")
	}
}
