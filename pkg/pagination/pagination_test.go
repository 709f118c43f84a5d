package pagination

import "testing"

func TestNew_Defaults(t *testing.T) {
	p := New(0, 0)

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestNew_Bounds(t *testing.T) {
	tests := []struct {
		limit, offset int
		wantL, wantO  int
	}{
		{50, 10, 50, 10},
		{500, 0, MaxLimit, 0},
		{-1, -5, DefaultLimit, 0},
		{MaxLimit, 200, MaxLimit, 200},
	}
	for _, tt := range tests {
		p := New(tt.limit, tt.offset)
		if p.Limit != tt.wantL || p.Offset != tt.wantO {
			t.Errorf("New(%d, %d) = %+v, want {%d %d}", tt.limit, tt.offset, p, tt.wantL, tt.wantO)
		}
	}
}

func TestForPage(t *testing.T) {
	p := ForPage(3, 30)
	if p.Limit != 30 || p.Offset != 60 {
		t.Errorf("expected {30 60}, got %+v", p)
	}
	if p.Page() != 3 {
		t.Errorf("expected page 3, got %d", p.Page())
	}

	if first := ForPage(0, 0); first.Offset != 0 || first.Page() != 1 {
		t.Errorf("expected first page, got %+v", first)
	}
}

func TestParams_GitHub(t *testing.T) {
	q := ForPage(2, 10).GitHub()
	if q.Get("per_page") != "10" || q.Get("page") != "2" {
		t.Errorf("unexpected query %s", q.Encode())
	}

	q = Params{}.GitHub()
	if q.Get("per_page") != "20" || q.Get("page") != "1" {
		t.Errorf("expected normalised defaults, got %s", q.Encode())
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 20, Offset: 0}

	if p.HasPrevious() {
		t.Error("expected no previous page at offset 0")
	}
	if !p.HasNext(50) {
		t.Error("expected next page with total 50")
	}
	if p.NextOffset() != 20 {
		t.Errorf("expected next offset 20, got %d", p.NextOffset())
	}

	p = Params{Limit: 20, Offset: 40}
	if !p.HasNext(61) {
		t.Error("expected next page with total 61")
	}
	if p.HasNext(60) {
		t.Error("expected no next page when offset+limit == total")
	}
	if p.PreviousOffset() != 20 {
		t.Errorf("expected previous offset 20, got %d", p.PreviousOffset())
	}
	if (Params{Limit: 20, Offset: 5}).PreviousOffset() != 0 {
		t.Error("expected previous offset clamped to 0")
	}
}
