package ixkv

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"
)

type fooPK = Pair[uint64, uint64]

type foo struct {
	Name    string `msgpack:"name"`
	Surname string `msgpack:"surname"`
	ID      uint32 `msgpack:"id"`
}

func newFoo(name, surname string, id uint32) foo {
	return foo{name, surname, id}
}

func pk(a, b uint64) fooPK {
	return fooPK{a, b}
}

type fooIndexes struct {
	Name        *MultiIndexMap[fooPK, string, foo]
	NameSurname *MultiIndexMap[fooPK, Pair[string, string], foo]
	ID          *UniqueIndexMap[fooPK, uint32, foo]
}

func (idx *fooIndexes) Indexes() []Index[fooPK, foo] {
	return []Index[fooPK, foo]{idx.Name, idx.ID, idx.NameSurname}
}

func newFoos() *IndexedMap[fooPK, foo, *fooIndexes] {
	return NewIndexedMap("foo", PairKey(Uint64, Uint64), MsgPack[foo](), &fooIndexes{
		Name: NewMultiIndexMap[fooPK]("foo__name", String, func(_ fooPK, f foo) string {
			return f.Name
		}),
		NameSurname: NewMultiIndexMap[fooPK]("foo__name_surname", PairKey(String, String), func(_ fooPK, f foo) Pair[string, string] {
			return MakePair(f.Name, f.Surname)
		}),
		ID: NewUniqueIndexMap[fooPK]("foo__id", Uint32, func(f foo) uint32 {
			return f.ID
		}),
	})
}

type fooSetIndexes struct {
	Name        *MultiIndexSet[fooPK, string, foo]
	NameSurname *MultiIndexSet[fooPK, Pair[string, string], foo]
	ID          *UniqueIndexSet[fooPK, uint32, foo]
}

func (idx *fooSetIndexes) Indexes() []Index[fooPK, foo] {
	return []Index[fooPK, foo]{idx.Name, idx.ID, idx.NameSurname}
}

func newFooSet() *IndexedSet[fooPK, foo, *fooSetIndexes] {
	return NewIndexedSet("foo", PairKey(Uint64, Uint64), MsgPack[foo](), &fooSetIndexes{
		Name: NewMultiIndexSet[fooPK]("foo_name", String, func(_ fooPK, f foo) string {
			return f.Name
		}),
		NameSurname: NewMultiIndexSet[fooPK]("foo__name_surname", PairKey(String, String), func(_ fooPK, f foo) Pair[string, string] {
			return MakePair(f.Name, f.Surname)
		}),
		ID: NewUniqueIndexSet[fooPK]("foo__id", Uint32, func(f foo) uint32 {
			return f.ID
		}),
	})
}

type fooSaver interface {
	Save(store Storage, pk fooPK, data foo) error
}

func setupFoos(t testing.TB, c fooSaver) *MemStorage {
	store := NewMemStorage()
	for _, r := range []KV[fooPK, foo]{
		{pk(0, 1), newFoo("bar", "s_bar", 101)},
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
		{pk(1, 1), newFoo("bar", "s_bar", 103)},
		{pk(1, 2), newFoo("bar", "s_fooes", 104)},
		{pk(1, 3), newFoo("foo", "s_foo", 105)},
	} {
		ok(t, c.Save(store, r.Key, r.Value))
	}
	return store
}

func dump(t testing.TB, store Storage) string {
	t.Helper()
	return must(Dump(store, DumpAll))
}

func TestUniqueIndexMap(t *testing.T) {
	foos := newFoos()
	store := setupFoos(t, foos)

	deepEqual(t, must(foos.Idx.ID.Load(store, 104)), newFoo("bar", "s_fooes", 104))
	deepEqual(t, must(foos.Idx.ID.LoadKey(store, 104)), pk(1, 2))
	deepEqual(t, must(foos.Idx.ID.Has(store, 105)), true)
	deepEqual(t, must(foos.Idx.ID.Has(store, 106)), false)
	if _, err := foos.Idx.ID.Load(store, 106); !IsNotFound(err) {
		t.Fatalf("** Load(106) = %v, wanted not found", err)
	}

	before := dump(t, store)
	err := foos.Save(store, pk(5, 5), newFoo("bar", "s_fooes", 104))
	isErr(t, err, ErrDuplicateIndexValue)
	var ke *KeyError
	if !errors.As(err, &ke) || ke.Index != "foo__id" || ke.Namespace != "foo" {
		t.Fatalf("** duplicate error %v does not name the index", err)
	}
	deepEqual(t, dump(t, store), before)

	// re-saving a record with its own index value is fine
	ok(t, foos.Save(store, pk(1, 2), newFoo("baz", "s_fooes", 104)))
	deepEqual(t, must(foos.Idx.ID.Load(store, 104)), newFoo("baz", "s_fooes", 104))

	deepEqual(t, collect(t, foos.Idx.ID.Range(store, nil, nil, Ascending)), []KV[uint32, foo]{
		{101, newFoo("bar", "s_bar", 101)},
		{102, newFoo("bar", "s_bar", 102)},
		{103, newFoo("bar", "s_bar", 103)},
		{104, newFoo("baz", "s_fooes", 104)},
		{105, newFoo("foo", "s_foo", 105)},
	})
	deepEqual(t, collect(t, foos.Idx.ID.Keys(store, Exclusive[uint32](103), nil, Descending)), []uint32{105, 104})
}

func TestMultiIndexSingletonMap(t *testing.T) {
	foos := newFoos()
	store := setupFoos(t, foos)

	deepEqual(t, collect(t, foos.Idx.Name.Range(store, nil, nil, Ascending)), []IndexEntry[string, fooPK, foo]{
		{"bar", pk(0, 1), newFoo("bar", "s_bar", 101)},
		{"bar", pk(0, 2), newFoo("bar", "s_bar", 102)},
		{"bar", pk(1, 1), newFoo("bar", "s_bar", 103)},
		{"bar", pk(1, 2), newFoo("bar", "s_fooes", 104)},
		{"foo", pk(1, 3), newFoo("foo", "s_foo", 105)},
	})

	deepEqual(t, collect(t, foos.Idx.Name.Prefix("bar").Range(store, nil, nil, Ascending)), []KV[fooPK, foo]{
		{pk(0, 1), newFoo("bar", "s_bar", 101)},
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
		{pk(1, 1), newFoo("bar", "s_bar", 103)},
		{pk(1, 2), newFoo("bar", "s_fooes", 104)},
	})
	deepEqual(t, collect(t, foos.Idx.Name.Prefix("bar").Keys(store, nil, nil, Descending)),
		[]fooPK{pk(1, 2), pk(1, 1), pk(0, 2), pk(0, 1)})
	deepEqual(t, must(foos.Idx.Name.Prefix("baz").IsEmpty(store)), true)

	keys := collect(t, foos.Idx.Name.Keys(store, Exclusive(MakePair("bar", pk(1, 2))), nil, Ascending))
	deepEqual(t, keys, []Pair[string, fooPK]{{"foo", pk(1, 3)}})
}

func TestMultiIndexTupleMap(t *testing.T) {
	foos := newFoos()
	store := setupFoos(t, foos)
	barSBar := foos.Idx.NameSurname.Prefix(MakePair("bar", "s_bar"))

	deepEqual(t, collect(t, barSBar.Range(store, nil, nil, Ascending)), []KV[fooPK, foo]{
		{pk(0, 1), newFoo("bar", "s_bar", 101)},
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
		{pk(1, 1), newFoo("bar", "s_bar", 103)},
	})
	deepEqual(t, collect(t, barSBar.Range(store, Inclusive(pk(0, 2)), nil, Ascending)), []KV[fooPK, foo]{
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
		{pk(1, 1), newFoo("bar", "s_bar", 103)},
	})

	bar := SubPrefix(foos.Idx.NameSurname, "bar")
	deepEqual(t, collect(t, bar.Range(store, nil, nil, Ascending)), []KV[fooPK, foo]{
		{pk(0, 1), newFoo("bar", "s_bar", 101)},
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
		{pk(1, 1), newFoo("bar", "s_bar", 103)},
		{pk(1, 2), newFoo("bar", "s_fooes", 104)},
	})
	deepEqual(t, collect(t, bar.Range(store, Exclusive(MakePair("s_bar", pk(0, 1))), nil, Ascending)), []KV[fooPK, foo]{
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
		{pk(1, 1), newFoo("bar", "s_bar", 103)},
		{pk(1, 2), newFoo("bar", "s_fooes", 104)},
	})
	deepEqual(t, collect(t, bar.Keys(store, Exclusive(MakePair("s_bar", pk(0, 1))), Exclusive(MakePair("s_fooes", pk(0, 0))), Ascending)),
		[]fooPK{pk(0, 2), pk(1, 1)})
	deepEqual(t, collect(t, bar.Values(store, nil, nil, Descending))[0], newFoo("bar", "s_fooes", 104))

	zero := AppendIndex(barSBar, uint64(0))
	deepEqual(t, collect(t, zero.Range(store, nil, nil, Ascending)), []KV[fooPK, foo]{
		{pk(0, 1), newFoo("bar", "s_bar", 101)},
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
	})
	deepEqual(t, collect(t, zero.Range(store, Exclusive[uint64](1), nil, Ascending)), []KV[fooPK, foo]{
		{pk(0, 2), newFoo("bar", "s_bar", 102)},
	})
	deepEqual(t, must(AppendIndex(barSBar, uint64(7)).IsEmpty(store)), true)
}

func TestUniqueIndexSet(t *testing.T) {
	foos := newFooSet()
	store := setupFoos(t, foos)

	deepEqual(t, must(foos.Idx.ID.Load(store, 104)), pk(1, 2))

	before := dump(t, store)
	isErr(t, foos.Save(store, pk(5, 5), newFoo("bar", "s_fooes", 104)), ErrDuplicateIndexValue)
	deepEqual(t, dump(t, store), before)

	deepEqual(t, collect(t, foos.Idx.ID.Range(store, nil, nil, Ascending)), []KV[uint32, fooPK]{
		{101, pk(0, 1)},
		{102, pk(0, 2)},
		{103, pk(1, 1)},
		{104, pk(1, 2)},
		{105, pk(1, 3)},
	})
}

func TestMultiIndexSet(t *testing.T) {
	foos := newFooSet()
	store := setupFoos(t, foos)

	deepEqual(t, collect(t, foos.Idx.Name.Range(store, nil, nil, Ascending)), []KV[string, fooPK]{
		{"bar", pk(0, 1)},
		{"bar", pk(0, 2)},
		{"bar", pk(1, 1)},
		{"bar", pk(1, 2)},
		{"foo", pk(1, 3)},
	})
	deepEqual(t, collect(t, foos.Idx.Name.Prefix("bar").Keys(store, nil, nil, Ascending)),
		[]fooPK{pk(0, 1), pk(0, 2), pk(1, 1), pk(1, 2)})

	bar := SetSubPrefix(foos.Idx.NameSurname, "bar")
	deepEqual(t, collect(t, bar.Keys(store, Exclusive(MakePair("s_bar", pk(0, 1))), nil, Ascending)),
		[]fooPK{pk(0, 2), pk(1, 1), pk(1, 2)})
	zero := AppendIndex(foos.Idx.NameSurname.Prefix(MakePair("bar", "s_bar")), uint64(0))
	deepEqual(t, collect(t, zero.Keys(store, Exclusive[uint64](1), nil, Ascending)), []fooPK{pk(0, 2)})
	deepEqual(t, collect(t, zero.Range(store, nil, nil, Ascending)), []KV[fooPK, Empty]{{pk(0, 1), Empty{}}, {pk(0, 2), Empty{}}})

	deepEqual(t, collect(t, foos.Range(store, nil, Exclusive(pk(1, 0)), Ascending)), []fooPK{pk(0, 1), pk(0, 2)})
	deepEqual(t, must(foos.Has(store, pk(1, 3))), true)
	deepEqual(t, len(collect(t, foos.RangeRaw(store, nil, nil, Descending))), 5)
}

func TestIndexedRemove(t *testing.T) {
	foos := newFoos()
	store := setupFoos(t, foos)

	ok(t, foos.Remove(store, pk(1, 2)))
	ok(t, foos.Remove(store, pk(1, 2)))
	ok(t, foos.Remove(store, pk(9, 9)))

	deepEqual(t, must(foos.Has(store, pk(1, 2))), false)
	deepEqual(t, must(foos.Idx.ID.Has(store, 104)), false)
	deepEqual(t, collect(t, SubPrefix(foos.Idx.NameSurname, "bar").Keys(store, nil, nil, Ascending)),
		[]fooPK{pk(0, 1), pk(0, 2), pk(1, 1)})

	// the freed index value can be reused
	ok(t, foos.Save(store, pk(5, 5), newFoo("qux", "s_qux", 104)))
	deepEqual(t, must(foos.Idx.ID.LoadKey(store, 104)), pk(5, 5))
}

func TestIndexedUpdate(t *testing.T) {
	foos := newFoos()
	store := setupFoos(t, foos)

	updated, err := foos.Update(store, pk(1, 3), func(old *foo) (*foo, error) {
		if old == nil {
			t.Fatalf("** old is nil for an existing record")
		}
		old.Surname = "s_bar"
		old.Name = "bar"
		return old, nil
	})
	ok(t, err)
	deepEqual(t, *updated, newFoo("bar", "s_bar", 105))
	deepEqual(t, collect(t, foos.Idx.Name.Prefix("foo").Keys(store, nil, nil, Ascending)), nil)
	deepEqual(t, collect(t, foos.Idx.NameSurname.Prefix(MakePair("bar", "s_bar")).Keys(store, nil, nil, Ascending)),
		[]fooPK{pk(0, 1), pk(0, 2), pk(1, 1), pk(1, 3)})

	failure := errors.New("callback failed")
	before := dump(t, store)
	_, err = foos.Update(store, pk(0, 1), func(old *foo) (*foo, error) {
		old.ID = 999
		return nil, failure
	})
	if err != failure {
		t.Fatalf("** Update = %v, wanted the callback error as is", err)
	}
	deepEqual(t, dump(t, store), before)

	_, err = foos.Update(store, pk(0, 1), func(old *foo) (*foo, error) {
		old.ID = 102
		return old, nil
	})
	isErr(t, err, ErrDuplicateIndexValue)
	deepEqual(t, dump(t, store), before)

	res, err := foos.Update(store, pk(7, 7), func(old *foo) (*foo, error) { return nil, nil })
	ok(t, err)
	if res != nil {
		t.Fatalf("** Update(absent -> nil) = %v", *res)
	}
	deepEqual(t, dump(t, store), before)

	_, err = foos.Update(store, pk(0, 1), func(old *foo) (*foo, error) { return nil, nil })
	ok(t, err)
	deepEqual(t, must(foos.Idx.ID.Has(store, 101)), false)
	deepEqual(t, must(foos.Has(store, pk(0, 1))), false)
}

func TestIndexedClear(t *testing.T) {
	foos := newFoos()
	store := setupFoos(t, foos)

	ok(t, foos.Clear(store, Inclusive(pk(1, 0)), nil))
	deepEqual(t, collect(t, foos.Keys(store, nil, nil, Ascending)), []fooPK{pk(0, 1), pk(0, 2)})
	deepEqual(t, collect(t, foos.Idx.ID.Keys(store, nil, nil, Ascending)), []uint32{101, 102})
	deepEqual(t, must(foos.Idx.Name.Prefix("foo").IsEmpty(store)), true)

	ok(t, foos.Clear(store, nil, nil))
	deepEqual(t, store.Len(), 0)
	deepEqual(t, must(foos.IsEmpty(store)), true)
}

func TestIndexedMapOverBuffer(t *testing.T) {
	foos := newFoos()
	base := setupFoos(t, foos)
	before := dump(t, base)

	buf := NewBuffer(base)
	ok(t, foos.Save(buf, pk(2, 1), newFoo("zed", "s_zed", 201)))
	ok(t, foos.Remove(buf, pk(0, 1)))
	deepEqual(t, must(foos.Idx.ID.LoadKey(buf, 201)), pk(2, 1))
	deepEqual(t, collect(t, foos.Idx.Name.Prefix("bar").Keys(buf, nil, nil, Ascending)),
		[]fooPK{pk(0, 2), pk(1, 1), pk(1, 2)})
	deepEqual(t, dump(t, base), before)

	buf.Discard()
	deepEqual(t, dump(t, buf), before)
}

func TestIndexAttachedTwicePanics(t *testing.T) {
	name := NewMultiIndexSet[string]("dup__name", String, func(_ string, v string) string { return v })
	NewIndexedMap("dup_a", String, MsgPack[string](), Indexes[string, string](name))
	expectPanic(t, func() {
		NewIndexedMap("dup_b", String, MsgPack[string](), Indexes[string, string](name))
	})

	loose := NewUniqueIndexSet[string]("loose", String, func(v string) string { return v })
	expectPanic(t, func() {
		loose.Save(NewMemStorage(), "x", "x")
	})
}

// TestIndexedConsistency runs random saves, updates and removes and then
// checks that every index agrees with the primary records.
func TestIndexedConsistency(t *testing.T) {
	foos := newFoos()
	store := NewMemStorage()
	rnd := rand.New(rand.NewSource(42))
	names := []string{"a", "b", "c"}

	for i := 0; i < 500; i++ {
		key := pk(uint64(rnd.Intn(4)), uint64(rnd.Intn(4)))
		switch rnd.Intn(4) {
		case 0, 1:
			f := newFoo(names[rnd.Intn(3)], names[rnd.Intn(3)], uint32(rnd.Intn(20)))
			err := foos.Save(store, key, f)
			if err != nil && !errors.Is(err, ErrDuplicateIndexValue) {
				t.Fatal(err)
			}
		case 2:
			ok(t, foos.Remove(store, key))
		case 3:
			_, err := foos.Update(store, key, func(old *foo) (*foo, error) {
				if old == nil {
					return nil, nil
				}
				old.Name = names[rnd.Intn(3)]
				return old, nil
			})
			ok(t, err)
		}
	}

	records := collect(t, foos.Range(store, nil, nil, Ascending))
	var byName []string
	var byID []uint32
	for _, r := range records {
		byName = append(byName, fmt.Sprintf("%s/%v", r.Value.Name, r.Key))
		byID = append(byID, r.Value.ID)
		deepEqual(t, must(foos.Idx.ID.LoadKey(store, r.Value.ID)), r.Key)
	}
	slices.Sort(byName)
	slices.Sort(byID)

	var idxNames []string
	for e, err := range foos.Idx.Name.Range(store, nil, nil, Ascending) {
		ok(t, err)
		deepEqual(t, e.Value.Name, e.IndexKey)
		idxNames = append(idxNames, fmt.Sprintf("%s/%v", e.IndexKey, e.PrimaryKey))
	}
	slices.Sort(idxNames)
	deepEqual(t, idxNames, byName)
	deepEqual(t, collect(t, foos.Idx.ID.Keys(store, nil, nil, Ascending)), byID)
	deepEqual(t, len(collect(t, foos.Idx.NameSurname.Keys(store, nil, nil, Ascending))), len(records))
}
