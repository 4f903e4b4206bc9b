package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pyrite-lang/pyrite/vm"
)

func testChunk(t *testing.T) *vm.Chunk {
	t.Helper()
	b := vm.NewChunkBuilder()
	if err := b.EmitConstant(1, vm.OpConstant, vm.FromInt(7)); err != nil {
		t.Fatal(err)
	}
	b.Emit(1, vm.OpPop)
	b.Emit(1, vm.OpNil)
	b.Emit(1, vm.OpReturn)
	return b.Chunk()
}

func TestPutGetRoundTrip(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "pyrite-cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	hash := HashSource("x = 7\n")
	if _, ok, err := c.Get(hash); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}

	chunk := testChunk(t)
	if err := c.Put(hash, chunk); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(hash)
	if err != nil || !ok {
		t.Fatalf("Get after Put: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Code, chunk.Code) {
		t.Fatal("cached chunk code differs")
	}
}

func TestPutReplacesExistingEntry(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "pyrite-cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	hash := HashSource("y = 1\n")
	if err := c.Put(hash, testChunk(t)); err != nil {
		t.Fatal(err)
	}

	b := vm.NewChunkBuilder()
	b.Emit(9, vm.OpNil)
	b.Emit(9, vm.OpReturn)
	replacement := b.Chunk()
	if err := c.Put(hash, replacement); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(hash)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Code, replacement.Code) {
		t.Fatal("replacement did not take effect")
	}
}

func TestDistinctSourcesHashDifferently(t *testing.T) {
	if HashSource("a = 1\n") == HashSource("a = 2\n") {
		t.Fatal("distinct sources share a hash")
	}
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyrite-cache.db")
	hash := HashSource("z = 3\n")

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(hash, testChunk(t)); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	if _, ok, err := c2.Get(hash); err != nil || !ok {
		t.Fatalf("entry lost across reopen: ok=%v err=%v", ok, err)
	}
}
