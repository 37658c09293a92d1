package clustering

import (
	"context"
	"errors"
	"math"
	"testing"

	"newsdesk/internal/core"
	"newsdesk/internal/store"
	"newsdesk/internal/vectorstore"
)

// at returns a unit vector at the given angle in degrees.
func at(id string, degrees float64) core.VectorRecord {
	rad := degrees * math.Pi / 180
	return core.VectorRecord{
		ID:        id,
		Embedding: []float32{float32(math.Cos(rad)), float32(math.Sin(rad))},
	}
}

func ids(c core.Cluster) []string {
	out := make([]string, len(c.Items))
	for i, item := range c.Items {
		out[i] = item.ID
	}
	return out
}

func TestDBSCAN_DefaultParameters(t *testing.T) {
	records := []core.VectorRecord{
		{ID: "c", Embedding: []float32{0, 1}},
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{0.99, 0.05}},
	}

	clusters, err := DBSCAN(records, DefaultEps, DefaultMinSamples)
	if err != nil {
		t.Fatalf("DBSCAN failed: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Size() != 2 || clusters[1].Size() != 1 {
		t.Errorf("Expected sizes 2 and 1, got %d and %d", clusters[0].Size(), clusters[1].Size())
	}
	if got := ids(clusters[0]); got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}
	if got := ids(clusters[1]); got[0] != "c" {
		t.Errorf("Expected [c], got %v", got)
	}
}

func TestDBSCAN_BorderAndNoise(t *testing.T) {
	records := []core.VectorRecord{
		at("p0", 0),
		at("p1", 10),
		at("p2", 20),
		at("p3", 45), // border: only p2 and itself within eps
		at("p4", 90), // noise
	}

	clusters, err := DBSCAN(records, DefaultEps, 3)
	if err != nil {
		t.Fatalf("DBSCAN failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(clusters))
	}
	got := ids(clusters[0])
	want := []string{"p0", "p1", "p2", "p3"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}
}

func TestDBSCAN_BorderJoinsLowestCoreNeighbour(t *testing.T) {
	// m reaches a4 and z1, which are core points of two separate clusters,
	// but has too few neighbours to be core itself.
	records := []core.VectorRecord{
		at("z1", 56), at("z2", 64), at("z3", 65), at("z4", 66),
		at("m", 28),
		at("a1", -10), at("a2", -9), at("a3", -8), at("a4", 0),
	}

	clusters, err := DBSCAN(records, DefaultEps, 4)
	if err != nil {
		t.Fatalf("DBSCAN failed: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(clusters))
	}

	first := ids(clusters[0])
	want := []string{"a1", "a2", "a3", "a4", "m"}
	if len(first) != len(want) {
		t.Fatalf("Expected %v, got %v", want, first)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, first)
			break
		}
	}
	if clusters[1].Size() != 4 || ids(clusters[1])[0] != "z1" {
		t.Errorf("Expected z cluster of 4, got %v", ids(clusters[1]))
	}
}

func TestDBSCAN_Deterministic(t *testing.T) {
	forward := []core.VectorRecord{at("a", 0), at("b", 5), at("c", 60), at("d", 62), at("e", 120)}
	backward := []core.VectorRecord{forward[4], forward[3], forward[2], forward[1], forward[0]}

	one, err := DBSCAN(forward, DefaultEps, 1)
	if err != nil {
		t.Fatalf("DBSCAN failed: %v", err)
	}
	two, err := DBSCAN(backward, DefaultEps, 1)
	if err != nil {
		t.Fatalf("DBSCAN failed: %v", err)
	}

	if len(one) != 3 || len(two) != 3 {
		t.Fatalf("Expected 3 clusters each, got %d and %d", len(one), len(two))
	}
	for i := range one {
		a, b := ids(one[i]), ids(two[i])
		if len(a) != len(b) {
			t.Fatalf("Cluster %d differs: %v vs %v", i, a, b)
		}
		for k := range a {
			if a[k] != b[k] {
				t.Errorf("Cluster %d differs: %v vs %v", i, a, b)
			}
		}
	}
	if ids(one[0])[0] != "a" || ids(one[1])[0] != "c" || ids(one[2])[0] != "e" {
		t.Errorf("Clusters not ordered by lowest member id")
	}
}

func TestDBSCAN_NoEmbeddings(t *testing.T) {
	if _, err := DBSCAN(nil, DefaultEps, 1); !errors.Is(err, core.ErrDataUnavailable) {
		t.Errorf("Expected ErrDataUnavailable, got %v", err)
	}
	if _, err := DBSCAN([]core.VectorRecord{{ID: "a"}}, DefaultEps, 1); !errors.Is(err, core.ErrDataUnavailable) {
		t.Errorf("Expected ErrDataUnavailable for records without embeddings, got %v", err)
	}
}

func TestDBSCAN_DimensionMismatch(t *testing.T) {
	records := []core.VectorRecord{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0, 0}},
	}
	if _, err := DBSCAN(records, DefaultEps, 1); err == nil {
		t.Error("Expected dimension mismatch error")
	}
}

func TestCosineDistance(t *testing.T) {
	if d := cosineDistance([]float64{1, 0}, []float64{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("Expected 0, got %f", d)
	}
	if d := cosineDistance([]float64{1, 0}, []float64{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("Expected 1, got %f", d)
	}
	if d := cosineDistance([]float64{0, 0}, []float64{0, 1}); d != 1 {
		t.Errorf("Expected 1 for zero vector, got %f", d)
	}
}

func TestDBSCANClusterer_Collection(t *testing.T) {
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	index := vectorstore.NewSQLiteIndex(s.DB())
	coll, err := index.GetOrCreateCollection(ctx, "broadcasts_2025_03_07")
	if err != nil {
		t.Fatalf("GetOrCreateCollection failed: %v", err)
	}

	if _, err := NewDBSCANClusterer().Cluster(ctx, coll); !errors.Is(err, core.ErrDataUnavailable) {
		t.Errorf("Expected ErrDataUnavailable for empty collection, got %v", err)
	}

	if err := coll.Upsert(ctx, []core.VectorRecord{at("a", 0), at("b", 3), at("c", 90)}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	clusters, err := NewDBSCANClusterer().WithEps(0.12).WithMinSamples(1).Cluster(ctx, coll)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(clusters) != 2 || clusters[0].Size() != 2 {
		t.Errorf("Expected clusters of 2 and 1, got %d clusters", len(clusters))
	}
}
