package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/simsearch/internal/db"
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
	err := s.Ping(context.Background())
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	_, err := NewStore(Config{})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("LOADING"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
	)

	s := NewStoreForTest(c)
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		MinTimes(1)

	s := NewStoreForTest(c)
	err := s.WaitForReady(context.Background(), 30*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

// --- hash.go tests ---

func TestFindSingletonValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HMGET", "hotels:h1", "lon", "lat")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("23.7"), mock.RedisString("37.9"))))

	s := NewStoreForTest(c)
	v, err := s.FindSingletonValue(context.Background(), &db.Query{
		Table: "hotels", KeyColumn: "id", ValueColumns: []string{"lon", "lat"}, Key: "h1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "23.7,37.9" {
		t.Fatalf("want 23.7,37.9, got %q", v)
	}
}

func TestFindSingletonValue_MissingField(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HMGET", "hotels:h9", "price")).
		Return(mock.Result(mock.RedisArray(mock.RedisNil())))

	s := NewStoreForTest(c)
	_, err := s.FindSingletonValue(context.Background(), &db.Query{
		Table: "hotels", KeyColumn: "id", ValueColumns: []string{"price"}, Key: "h9",
	})
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
}

func TestFindSingletonValue_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "HMGET" })).
		Return(mock.ErrorResult(errors.New("connection reset")))

	s := NewStoreForTest(c)
	_, err := s.FindSingletonValue(context.Background(), &db.Query{
		Table: "hotels", KeyColumn: "id", ValueColumns: []string{"price"}, Key: "h1",
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestExecuteQuery_PagesThroughScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[3] == "hotels:*"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(7),
					mock.RedisArray(mock.RedisString("hotels:h1"), mock.RedisString("hotels:h2")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("hotels:h3")),
			))
		}).Times(2)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisArray(mock.RedisString("100"))),
			mock.Result(mock.RedisArray(mock.RedisNil())),
		})
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisArray(mock.RedisString(" 80 "))),
		})

	s := NewStoreForTest(c)
	rows, err := s.ExecuteQuery(context.Background(), &db.Query{
		Table: "hotels", KeyColumn: "id", ValueColumns: []string{"price"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var got []db.Row
	for rows.Next() {
		got = append(got, rows.Row())
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 rows, got %v", got)
	}
	if got[0].Key != "h1" || got[0].Value() != "100" {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].Key != "h2" || got[1].Value() != "" {
		t.Errorf("row 1 = %+v", got[1])
	}
	if got[2].Key != "h3" || got[2].Value() != "80" {
		t.Errorf("row 2 = %+v", got[2])
	}
}

func TestExecuteQuery_ScanError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	rows, err := s.ExecuteQuery(context.Background(), &db.Query{
		Table: "hotels", KeyColumn: "id", ValueColumns: []string{"price"},
	})
	if err != nil {
		t.Fatalf("cursor creation must be lazy: %v", err)
	}
	if rows.Next() {
		t.Fatal("expected no rows")
	}
	if !isDBError(rows.Err()) {
		t.Fatalf("expected db.Error, got %v", rows.Err())
	}
}

func TestExecuteQuery_OrderingUnsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewStoreForTest(mock.NewClient(ctrl))

	_, err := s.ExecuteQuery(context.Background(), &db.Query{
		Table: "hotels", KeyColumn: "id", ValueColumns: []string{"price"},
		OrderBy: &db.Ordering{Column: "price", Target: 1},
	})
	if !errors.Is(err, db.ErrOrderingUnsupported) {
		t.Fatalf("want ErrOrderingUnsupported, got %v", err)
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("expected value, got %q", string(data))
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

func TestSetWithTTL_NoExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "value")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("value"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[3] == "EX" && cmd[4] == "60"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.SetWithTTL(context.Background(), "mykey", []byte("v"), time.Minute)
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
