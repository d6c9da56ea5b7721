package valkey

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/realtorbot/internal/db"
	"github.com/kailas-cloud/realtorbot/internal/domain/listing"
	"github.com/kailas-cloud/realtorbot/internal/domain/search/filter"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	s := NewStoreForTest(c)
	err := s.WaitForReady(context.Background(), 250*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timeout waiting for valkey") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestNewStore_NoAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{"Unknown Index Name", "unknown index name", true},
		{"NO SUCH INDEX", "no such index", true},
		{"short", "longer than input", false},
		{"", "", true},
	}
	for _, tc := range tests {
		if got := containsIgnoreCase(tc.s, tc.sub); got != tc.want {
			t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tc.s, tc.sub, got, tc.want)
		}
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.ErrorResult(errors.New("boom")))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "mykey")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpGet {
		t.Errorf("expected *db.Error with op GET, got %v", err)
	}
}

func TestSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.Set(context.Background(), "mykey", []byte("myvalue")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("myvalue"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrBy_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCRBY", "counter", "5")).
		Return(mock.Result(mock.RedisInt64(12)))

	s := NewStoreForTest(c)
	n, err := s.IncrBy(context.Background(), "counter", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 12 {
		t.Errorf("expected 12, got %d", n)
	}
}

func TestExpire_WithNX(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "mykey", "300", "NX")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Expire(context.Background(), "mykey", 5*time.Minute, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_WithoutNX(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "mykey", "300")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Expire(context.Background(), "mykey", 5*time.Minute, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- search.go tests ---

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "realtorbot:acme:idx"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("realtorbot:acme:L1:0"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.2"),
				mock.RedisString("text"),
				mock.RedisString("T2 em Lisboa"),
			),
			mock.RedisString("realtorbot:acme:L2:0"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("1.4"),
			),
		)))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "realtorbot:acme:idx",
		Vector:    []float32{0.1, 0.2},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", result)
	}
	// cosine distance 0.2 maps to similarity 0.8
	if result.Entries[0].Score < 0.79 || result.Entries[0].Score > 0.81 {
		t.Errorf("expected score ~0.8, got %f", result.Entries[0].Score)
	}
	if result.Entries[0].Fields["text"] != "T2 em Lisboa" {
		t.Errorf("unexpected fields: %v", result.Entries[0].Fields)
	}
	if _, ok := result.Entries[0].Fields["__vector_score"]; ok {
		t.Error("__vector_score must be stripped from fields")
	}
	if result.Entries[1].Score != 0 {
		t.Errorf("distance above 1 must clamp to 0, got %f", result.Entries[1].Score)
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(result.Entries))
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}}); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestBuildKNNArgs(t *testing.T) {
	tenant, _ := filter.NewMatch("tenant_id", "acme")
	expr, _ := filter.NewExpression([]filter.Condition{tenant})

	args := buildKNNArgs(&db.KNNQuery{
		IndexName:    "realtorbot:acme:idx",
		Filters:      expr,
		Vector:       []float32{1},
		K:            50,
		ReturnFields: []string{"text", "listing_id"},
	})

	want := []string{
		"realtorbot:acme:idx",
		"(@tenant_id:{acme})=>[KNN 50 @vector $BLOB]",
		"RETURN", "2", "text", "listing_id",
		"LIMIT", "0", "50",
		"PARAMS", "2", "BLOB",
	}
	for i, w := range want {
		if args[i] != w {
			t.Fatalf("arg %d = %q, want %q (args: %q)", i, args[i], w, args)
		}
	}
	if args[len(args)-2] != "DIALECT" || args[len(args)-1] != "2" {
		t.Errorf("expected DIALECT 2 at the end, got %q", args[len(args)-2:])
	}
}

func TestBuildKNNArgs_ListingReturnFields(t *testing.T) {
	args := buildKNNArgs(&db.KNNQuery{
		IndexName:    "realtorbot:acme:idx",
		Vector:       []float32{1},
		K:            5,
		ReturnFields: listing.ReturnFields,
	})

	i := slices.Index(args, "RETURN")
	if i < 0 {
		t.Fatalf("RETURN missing: %q", args)
	}
	if args[i+1] != strconv.Itoa(len(listing.ReturnFields)) {
		t.Errorf("RETURN count = %s, want %d", args[i+1], len(listing.ReturnFields))
	}
	returned := args[i+2 : i+2+len(listing.ReturnFields)]
	if slices.Contains(returned, listing.FieldVector) {
		t.Errorf("vector blob requested: %q", returned)
	}
	if !slices.Contains(returned, listing.FieldVectorScore) {
		t.Errorf("score field missing: %q", returned)
	}
}

func TestBuildKNNArgs_NoFilter(t *testing.T) {
	args := buildKNNArgs(&db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 10})
	if args[1] != "*=>[KNN 10 @vector $BLOB]" {
		t.Errorf("unexpected query: %q", args[1])
	}
}

// --- Filter building tests ---

func TestBuildFilter_Empty(t *testing.T) {
	if got := buildFilter(filter.Expression{}); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestBuildFilter(t *testing.T) {
	tenant, _ := filter.NewMatch("tenant_id", "acme")
	allowed, _ := filter.NewMatchAny("listing_id", []string{"L-1", "L-2"})
	pool, _ := filter.NewMatch("has_pool", "true")
	lt := 300000.0
	r, _ := filter.NewRangeFilter(nil, nil, &lt, nil)
	price, _ := filter.NewRange("price_eur", r)

	expr, _ := filter.NewExpression([]filter.Condition{tenant, allowed, price, pool})

	want := `@tenant_id:{acme} @listing_id:{L\-1 | L\-2} @price_eur:[-inf (300000] @has_pool:{true}`
	if got := buildFilter(expr); got != want {
		t.Errorf("buildFilter() = %q\nwant %q", got, want)
	}
}

func TestBuildNumericFilter(t *testing.T) {
	v := 2.0
	eq, _ := filter.NewRangeFilter(nil, &v, nil, &v)
	if got := buildNumericFilter("num_bedrooms", eq); got != `@num_bedrooms:[2 2]` {
		t.Errorf("unexpected filter: %q", got)
	}

	big := 1500000.0
	gt, _ := filter.NewRangeFilter(&big, nil, nil, nil)
	if got := buildNumericFilter("price_eur", gt); got != `@price_eur:[(1500000 +inf]` {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestBuildTagFilter_Escapes(t *testing.T) {
	if got := buildTagFilter("development_id", []string{"Quinta do Lago"}); got != `@development_id:{Quinta\ do\ Lago}` {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestVectorToBytes(t *testing.T) {
	if b := vectorToBytes([]float32{1.0, 2.0}); len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}
