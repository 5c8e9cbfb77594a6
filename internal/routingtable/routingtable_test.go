package routingtable

import (
	"sync"
	"testing"

	"PastryDHT/internal/domain"
)

func testSpace(t *testing.T) domain.Space {
	t.Helper()
	return domain.DefaultSpace()
}

// peer builds a peer whose port encodes its id, so addresses stay
// distinct without mattering to the tests.
func peer(id domain.ID) domain.Node {
	return domain.Node{ID: id, Host: "127.0.0.1", Port: 40000 + int(id%10000)}
}

func leafIDs(nodes []domain.Node) []domain.ID {
	out := make([]domain.ID, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func equalIDs(a, b []domain.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertLeafOrderingAndTruncation(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))

	for _, id := range []domain.ID{0x5000, 0x7fff, 0x4000, 0x6000, 0x7000} {
		rt.Insert(peer(id))
	}
	for _, id := range []domain.ID{0x9000, 0x8001} {
		rt.Insert(peer(id))
	}

	smaller, larger := rt.Leaves()
	// nearest first, strictly decreasing, truncated to the 4 closest:
	// 0x4000 is the farthest and must have been dropped
	if want := []domain.ID{0x7fff, 0x7000, 0x6000, 0x5000}; !equalIDs(leafIDs(smaller), want) {
		t.Errorf("leafSmaller = %v, want %v", leafIDs(smaller), want)
	}
	if want := []domain.ID{0x8001, 0x9000}; !equalIDs(leafIDs(larger), want) {
		t.Errorf("leafLarger = %v, want %v", leafIDs(larger), want)
	}
}

func TestInsertIgnoresSelf(t *testing.T) {
	self := peer(0x8000)
	rt := New(self, testSpace(t))
	rt.Insert(self)
	if got := rt.Peers(); len(got) != 0 {
		t.Errorf("Peers() after self-insert = %v, want empty", got)
	}
}

func TestInsertIdempotent(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	p := peer(0x7000)
	rt.Insert(p)
	before := rt.Snapshot()
	rt.Insert(p)
	after := rt.Snapshot()

	if !equalIDs(leafIDs(before.LeafSmaller), leafIDs(after.LeafSmaller)) ||
		!equalIDs(leafIDs(before.LeafLarger), leafIDs(after.LeafLarger)) {
		t.Errorf("double insert changed the leaf sets: %v -> %v", before, after)
	}
	if len(rt.Peers()) != 1 {
		t.Errorf("double insert grew the peer set: %v", rt.Peers())
	}
}

func TestInsertRefreshesAddress(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	rt.Insert(domain.Node{ID: 0x7000, Host: "10.0.0.1", Port: 1111})
	rt.Insert(domain.Node{ID: 0x7000, Host: "10.0.0.2", Port: 2222})

	smaller, _ := rt.Leaves()
	if len(smaller) != 1 {
		t.Fatalf("leafSmaller = %v, want one entry", smaller)
	}
	if smaller[0].Host != "10.0.0.2" || smaller[0].Port != 2222 {
		t.Errorf("leaf entry address not refreshed: %v", smaller[0])
	}
}

func TestRoutingCellDiscipline(t *testing.T) {
	sp := testSpace(t)
	self := peer(0x8000)
	rt := New(self, sp)

	for _, id := range []domain.ID{0x7fff, 0x7000, 0x9000, 0x8001, 0x1234, 0x80f0, 0x8800} {
		rt.Insert(peer(id))
	}

	info := rt.Snapshot()
	for i, row := range info.Table {
		for d, cell := range row {
			if cell == nil {
				continue
			}
			if got := sp.SharedPrefixLen(self.ID, cell.ID); got != i {
				t.Errorf("cell [%d][%d] holds %#04x with shared prefix %d", i, d, uint32(cell.ID), got)
			}
			if got := sp.Digit(cell.ID, i); got != d {
				t.Errorf("cell [%d][%d] holds %#04x whose digit %d is %d", i, d, uint32(cell.ID), i, got)
			}
			if d == sp.Digit(self.ID, i) {
				t.Errorf("cell [%d][%d] occupies the local digit column", i, d)
			}
		}
	}
}

func TestRoutingCellKeepsFirstOccupant(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	// both share no prefix with 0x8000 and have first digit 7
	rt.Insert(peer(0x7fff))
	rt.Insert(peer(0x7000))

	info := rt.Snapshot()
	cell := info.Table[0][7]
	if cell == nil || cell.ID != 0x7fff {
		t.Errorf("cell [0][7] = %v, want the first occupant 0x7fff", cell)
	}
}

func TestIsRootSingleton(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	for _, key := range []domain.ID{0x0000, 0x8000, 0xffff, 0x1234} {
		if !rt.IsRoot(key) {
			t.Errorf("singleton IsRoot(%#04x) = false, want true", uint32(key))
		}
	}
}

func TestIsRoot(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	rt.Insert(peer(0x7ff0)) // closest predecessor
	rt.Insert(peer(0x8010)) // closest successor
	rt.Insert(peer(0x4000))
	rt.Insert(peer(0xc000))

	tests := []struct {
		key  domain.ID
		want bool
	}{
		{0x8000, true},  // the local id itself
		{0x7ffd, true},  // nearer to local than to 0x7ff0
		{0x8007, true},  // nearer to local than to 0x8010
		{0x7ff1, false}, // nearer to the predecessor
		{0x800f, false}, // nearer to the successor
	}
	for _, tt := range tests {
		if got := rt.IsRoot(tt.key); got != tt.want {
			t.Errorf("IsRoot(%#04x) = %v, want %v", uint32(tt.key), got, tt.want)
		}
	}
}

func TestNextHopLeafSet(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	for _, id := range []domain.ID{0x7fff, 0x7000, 0x6000, 0x5000, 0x8001, 0x9000} {
		rt.Insert(peer(id))
	}

	// inside the leaf span, nearest leaf wins
	next, ok := rt.NextHop(0x7f00)
	if !ok || next.ID != 0x7fff {
		t.Errorf("NextHop(0x7f00) = %v, %v, want 0x7fff", next, ok)
	}

	// equidistant between 0x7000 and 0x6000: tie goes to the smaller id
	next, ok = rt.NextHop(0x6800)
	if !ok || next.ID != 0x6000 {
		t.Errorf("NextHop(0x6800) = %v, %v, want 0x6000 on tie", next, ok)
	}
}

func TestNextHopPrefix(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	rt.Insert(peer(0x9000))
	rt.Insert(peer(0x7000))

	// 0x9500 is outside the leaf span [0x7000, 0x9000]; the prefix cell
	// [0][9] holds 0x9000, which shares one digit with the key
	next, ok := rt.NextHop(0x9500)
	if !ok || next.ID != 0x9000 {
		t.Errorf("NextHop(0x9500) = %v, %v, want 0x9000 via prefix cell", next, ok)
	}
}

func TestNextHopFallback(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	rt.Insert(peer(0x9000))
	rt.Insert(peer(0x7000))

	// key 0xffff: no cell at [0][f]; 0x9000 shares no fewer digits than
	// the local id and is numerically closer to the key
	next, ok := rt.NextHop(0xffff)
	if !ok || next.ID != 0x9000 {
		t.Errorf("NextHop(0xffff) = %v, %v, want 0x9000 via fallback", next, ok)
	}
}

func TestNextHopNone(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	if _, ok := rt.NextHop(0x1234); ok {
		t.Error("NextHop on an empty table returned a hop")
	}

	rt.Insert(peer(0x7000))
	// 0x8800 is outside the leaf span, no prefix cell matches, and the
	// only peer is numerically farther from the key than the local id
	if next, ok := rt.NextHop(0x8800); ok {
		t.Errorf("NextHop(0x8800) = %v, want none", next)
	}
}

func TestNextHopProgress(t *testing.T) {
	sp := testSpace(t)
	rt := New(peer(0x8000), sp)
	for _, id := range []domain.ID{0x7fff, 0x7000, 0x6000, 0x9000, 0xa000, 0x8400} {
		rt.Insert(peer(id))
	}

	// every hop either lengthens the shared prefix or strictly shrinks
	// the numeric distance to the key
	for key := domain.ID(0); key < 0xffff; key += 0x0111 {
		if rt.IsRoot(key) {
			continue
		}
		next, ok := rt.NextHop(key)
		if !ok {
			continue
		}
		gainedPrefix := sp.SharedPrefixLen(next.ID, key) > sp.SharedPrefixLen(0x8000, key)
		gotCloser := sp.AbsDistance(next.ID, key) < sp.AbsDistance(0x8000, key)
		if !gainedPrefix && !gotCloser {
			t.Errorf("NextHop(%#04x) = %#04x makes no progress", uint32(key), uint32(next.ID))
		}
	}
}

func TestMergeGrowsPeers(t *testing.T) {
	sp := testSpace(t)
	a := New(peer(0x8000), sp)
	for _, id := range []domain.ID{0x7fff, 0x7000, 0x9000, 0x8001} {
		a.Insert(peer(id))
	}

	b := New(peer(0x4000), sp)
	b.Insert(peer(0x4100))
	before := len(b.Peers())

	b.Merge(a.Snapshot())

	after := b.Peers()
	if len(after) < before {
		t.Fatalf("merge shrank the peer set: %d -> %d", before, len(after))
	}
	want := map[domain.ID]bool{0x7fff: true, 0x7000: true, 0x9000: true, 0x8001: true, 0x4100: true, 0x8000: false}
	got := make(map[domain.ID]bool)
	for _, p := range after {
		got[p.ID] = true
	}
	for id, expect := range want {
		if got[id] != expect {
			t.Errorf("after merge, peers[%#04x] = %v, want %v (origin id has no address and is not inserted)",
				uint32(id), got[id], expect)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	sp := testSpace(t)
	a := New(peer(0x8000), sp)
	for _, id := range []domain.ID{0x7fff, 0x9000} {
		a.Insert(peer(id))
	}
	b := New(peer(0x4000), sp)
	info := a.Snapshot()
	b.Merge(info)
	count := len(b.Peers())
	b.Merge(info)
	if got := len(b.Peers()); got != count {
		t.Errorf("second merge changed the peer count: %d -> %d", count, got)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))
	rt.Insert(peer(0x7000))

	info := rt.Snapshot()
	info.LeafSmaller[0].Host = "tampered"
	if cell := info.Table[0][7]; cell != nil {
		cell.Host = "tampered"
	}

	smaller, _ := rt.Leaves()
	if smaller[0].Host == "tampered" {
		t.Error("mutating a snapshot leaked into the leaf set")
	}
	if cell := rt.Snapshot().Table[0][7]; cell != nil && cell.Host == "tampered" {
		t.Error("mutating a snapshot leaked into the routing table")
	}
}

func TestConcurrentAccess(t *testing.T) {
	rt := New(peer(0x8000), testSpace(t))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed domain.ID) {
			defer wg.Done()
			for i := domain.ID(0); i < 200; i++ {
				id := (seed*0x1f1f + i*0x0101) & 0xffff
				rt.Insert(peer(id))
				rt.IsRoot(id)
				rt.NextHop(id ^ 0x5555)
				if i%50 == 0 {
					rt.Merge(rt.Snapshot())
				}
			}
		}(domain.ID(g))
	}
	wg.Wait()

	smaller, larger := rt.Leaves()
	for i := 1; i < len(smaller); i++ {
		if smaller[i-1].ID <= smaller[i].ID {
			t.Fatalf("leafSmaller not strictly decreasing: %v", leafIDs(smaller))
		}
	}
	for i := 1; i < len(larger); i++ {
		if larger[i-1].ID >= larger[i].ID {
			t.Fatalf("leafLarger not strictly increasing: %v", leafIDs(larger))
		}
	}
}
