package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

// fakeCollection serves scroll pages over ordered points with inclusive offsets.
type fakeCollection struct {
	points []*qdrant.RetrievedPoint
	calls  int
}

func newFakeCollection(n int) *fakeCollection {
	fc := &fakeCollection{}
	for i := 0; i < n; i++ {
		fc.points = append(fc.points, &qdrant.RetrievedPoint{
			Id: qdrant.NewID(fmt.Sprintf("00000000-0000-0000-0000-%012d", i)),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": "d1",
				"seq":         i,
				"text":        fmt.Sprintf("chunk %d", i),
			}),
		})
	}
	return fc
}

func (fc *fakeCollection) scroll(pageSize int) scrollPage {
	return func(_ context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, error) {
		fc.calls++
		start := 0
		if offset != nil {
			start = -1
			for i, p := range fc.points {
				if p.GetId().GetUuid() == offset.GetUuid() {
					start = i
					break
				}
			}
			if start < 0 {
				return nil, errors.New("unknown offset")
			}
		}
		end := start + pageSize
		if end > len(fc.points) {
			end = len(fc.points)
		}
		return fc.points[start:end], nil
	}
}

func TestScrollAll_Pagination(t *testing.T) {
	const pageSize = 4
	for _, n := range []int{0, 3, 4, 8, 10} {
		t.Run(fmt.Sprintf("%d points", n), func(t *testing.T) {
			fc := newFakeCollection(n)
			got, err := scrollAll(context.Background(), pageSize, fc.scroll(pageSize))
			if err != nil {
				t.Fatalf("scrollAll failed: %v", err)
			}
			if len(got) != n {
				t.Fatalf("got %d points, want %d", len(got), n)
			}
			for i, p := range got {
				c := chunkFromPayload(p.GetId(), p.GetPayload())
				if c.Seq != i || c.Text != fmt.Sprintf("chunk %d", i) {
					t.Fatalf("point %d = %+v, want seq %d", i, c, i)
				}
			}
		})
	}
}

func TestScrollAll_PropagatesError(t *testing.T) {
	failing := func(context.Context, *qdrant.PointId) ([]*qdrant.RetrievedPoint, error) {
		return nil, errors.New("unavailable")
	}
	if _, err := scrollAll(context.Background(), 4, failing); err == nil {
		t.Fatal("expected scroll error")
	}
}
