// Package clustering groups a news-day's vector records with DBSCAN over
// cosine distance.
package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"newsdesk/internal/core"
	"newsdesk/internal/logger"
	"newsdesk/internal/vectorstore"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Default DBSCAN parameters.
const (
	DefaultEps        = 0.12
	DefaultMinSamples = 1
)

// DBSCANClusterer clusters the records of one collection.
type DBSCANClusterer struct {
	eps        float64
	minSamples int
	log        *slog.Logger
}

// NewDBSCANClusterer creates a clusterer with the default parameters
func NewDBSCANClusterer() *DBSCANClusterer {
	return &DBSCANClusterer{
		eps:        DefaultEps,
		minSamples: DefaultMinSamples,
		log:        logger.Get(),
	}
}

// WithEps sets the maximum cosine distance between neighbours
func (d *DBSCANClusterer) WithEps(eps float64) *DBSCANClusterer {
	if eps > 0 {
		d.eps = eps
	}
	return d
}

// WithMinSamples sets the neighbourhood size, the point included, that makes a core point
func (d *DBSCANClusterer) WithMinSamples(minSamples int) *DBSCANClusterer {
	if minSamples > 0 {
		d.minSamples = minSamples
	}
	return d
}

// Cluster reads every record of the collection and groups them.
func (d *DBSCANClusterer) Cluster(ctx context.Context, collection vectorstore.Collection) ([]core.Cluster, error) {
	records, err := collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection.Name(), err)
	}

	clusters, err := DBSCAN(records, d.eps, d.minSamples)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", collection.Name(), err)
	}

	d.log.Info("Clustered collection",
		"collection", collection.Name(),
		"records", len(records),
		"clusters", len(clusters),
		"eps", d.eps,
		"min_samples", d.minSamples)

	return clusters, nil
}

// DBSCAN groups records whose embeddings lie within eps cosine distance.
// Records are processed in ascending ID order. Members of each cluster are
// sorted by ID and clusters are ordered by their lowest member ID. A border
// point reachable from several clusters joins the one holding its
// lowest-ID core neighbour. Noise is dropped.
func DBSCAN(records []core.VectorRecord, eps float64, minSamples int) ([]core.Cluster, error) {
	var points []core.VectorRecord
	for _, r := range records {
		if len(r.Embedding) > 0 {
			points = append(points, r)
		}
	}
	if len(points) == 0 {
		return nil, core.ErrDataUnavailable
	}
	if minSamples < 1 {
		minSamples = 1
	}

	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })

	vectors, err := toVectors(points)
	if err != nil {
		return nil, err
	}

	// neighbours[i] is in ascending index order and includes i.
	neighbours := make([][]int, len(points))
	for i := range vectors {
		for j := range vectors {
			if i == j || cosineDistance(vectors[i], vectors[j]) <= eps {
				neighbours[i] = append(neighbours[i], j)
			}
		}
	}

	isCore := make([]bool, len(points))
	g := simple.NewUndirectedGraph()
	for i, n := range neighbours {
		if len(n) >= minSamples {
			isCore[i] = true
			g.AddNode(simple.Node(i))
		}
	}
	for i, n := range neighbours {
		if !isCore[i] {
			continue
		}
		for _, j := range n {
			if j > i && isCore[j] {
				g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}

	label := make([]int, len(points))
	for i := range label {
		label[i] = -1
	}
	components := topo.ConnectedComponents(g)
	for c, nodes := range components {
		for _, n := range nodes {
			label[n.ID()] = c
		}
	}

	for i, n := range neighbours {
		if isCore[i] {
			continue
		}
		for _, j := range n {
			if isCore[j] {
				label[i] = label[j]
				break
			}
		}
	}

	members := make([][]int, len(components))
	for i, c := range label {
		if c >= 0 {
			members[c] = append(members[c], i)
		}
	}
	sort.Slice(members, func(a, b int) bool { return members[a][0] < members[b][0] })

	clusters := make([]core.Cluster, 0, len(members))
	for _, idx := range members {
		items := make([]core.VectorRecord, len(idx))
		for k, i := range idx {
			items[k] = points[i]
		}
		clusters = append(clusters, core.Cluster{Items: items})
	}

	return clusters, nil
}

func toVectors(points []core.VectorRecord) ([][]float64, error) {
	dims := len(points[0].Embedding)
	vectors := make([][]float64, len(points))
	for i, p := range points {
		if len(p.Embedding) != dims {
			return nil, fmt.Errorf("record %s has %d dimensions, expected %d", p.ID, len(p.Embedding), dims)
		}
		v := make([]float64, dims)
		for k, x := range p.Embedding {
			v[k] = float64(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// cosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func cosineDistance(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}
