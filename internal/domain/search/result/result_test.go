package result

import "testing"

func TestNew(t *testing.T) {
	tags := map[string]string{"listing_id": "L1", "development_id": "D1", "has_pool": "true"}
	nums := map[string]float64{"price_eur": 250000}

	m := New("acme:chunk:1", 0.9, "T2 com piscina", tags, nums)

	if m.ID() != "acme:chunk:1" || m.Score() != 0.9 || m.Text() != "T2 com piscina" {
		t.Errorf("unexpected match: %+v", m)
	}
	if m.ListingID() != "L1" {
		t.Errorf("ListingID() = %q", m.ListingID())
	}
	if m.DevelopmentID() != "D1" {
		t.Errorf("DevelopmentID() = %q", m.DevelopmentID())
	}
	if v, ok := m.Tag("has_pool"); !ok || v != "true" {
		t.Errorf("Tag(has_pool) = %q, %v", v, ok)
	}
	if v, ok := m.Numeric("price_eur"); !ok || v != 250000 {
		t.Errorf("Numeric(price_eur) = %v, %v", v, ok)
	}
}

func TestNumeric_FromTag(t *testing.T) {
	m := New("k", 0, "", map[string]string{"num_bedrooms": "3", "city": "Porto"}, nil)
	if v, ok := m.Numeric("num_bedrooms"); !ok || v != 3 {
		t.Errorf("Numeric(num_bedrooms) = %v, %v", v, ok)
	}
	if _, ok := m.Numeric("city"); ok {
		t.Error("non-numeric tag must not parse")
	}
	if _, ok := m.Numeric("missing"); ok {
		t.Error("missing key must not be found")
	}
}

func TestNilMetadata(t *testing.T) {
	m := New("k", 0.5, "", nil, nil)
	if m.ListingID() != "" || m.DevelopmentID() != "" {
		t.Error("nil tags must yield empty ids")
	}
	if _, ok := m.Tag("x"); ok {
		t.Error("nil tags must not match")
	}
}

func TestWithScore(t *testing.T) {
	m := New("k", 0.5, "", nil, nil)
	b := m.WithScore(2)
	if b.Score() != 2 || m.Score() != 0.5 {
		t.Errorf("WithScore must copy: orig=%v new=%v", m.Score(), b.Score())
	}
}
