package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

var january = generic.MonthPeriod(generic.NewTimePoint(2025, time.January, 1))

func key(tenant generic.TenantID, teacher generic.TeacherID) payroll.CacheKey {
	return payroll.CacheKey{Tenant: tenant, Teacher: teacher, Period: january}
}

func result(tenant generic.TenantID, teacher generic.TeacherID, net int64) *payroll.SalaryResult {
	eventID := int64(42)
	return payroll.Aggregate(payroll.AggregateInput{
		TenantID:   tenant,
		TeacherID:  teacher,
		Period:     january,
		BaseSalary: decimal.NewFromInt(net),
		Ledger: []payroll.LedgerEntry{{
			Date:           generic.NewTimePoint(2025, time.January, 6),
			AssignmentID:   "a1",
			Classification: payroll.OnTime,
			EventID:        &eventID,
			Type:           payroll.DeductionLateness,
			Amount:         decimal.Zero,
			Charged:        decimal.Zero,
			Waived:         decimal.Zero,
		}},
		PaymentStatus: payroll.PaymentUnpaid,
		ConfigSource:  payroll.ConfigFromDefault,
	})
}

func newRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedis(RedisOptions{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

// exercise runs the same contract against every implementation.
func exercise(t *testing.T, c payroll.ResultCache) {
	ctx := context.Background()

	_, ok, err := c.Get(ctx, key("t1", "x"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key("t1", "x"), result("t1", "x", 1000)))
	require.NoError(t, c.Set(ctx, key("t1", "y"), result("t1", "y", 900)))
	require.NoError(t, c.Set(ctx, key("t2", "x"), result("t2", "x", 800)))

	got, ok, err := c.Get(ctx, key("t1", "x"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.NetSalary.Equal(decimal.NewFromInt(1000)))
	require.Len(t, got.Ledger, 1)
	assert.Equal(t, int64(42), *got.Ledger[0].EventID)
	assert.True(t, got.Period.Start.Equal(january.Start))

	// Results handed out do not alias the stored copy.
	got.Ledger[0].AssignmentID = "mutated"
	again, _, _ := c.Get(ctx, key("t1", "x"))
	assert.Equal(t, "a1", again.Ledger[0].AssignmentID)

	n, err := c.Clear(ctx, payroll.ClearTeacher("t1", "x"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, _ = c.Get(ctx, key("t1", "y"))
	assert.True(t, ok)

	n, err = c.Clear(ctx, payroll.ClearTenant("t1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, _ = c.Get(ctx, key("t2", "x"))
	assert.True(t, ok)

	n, err = c.Clear(ctx, payroll.ClearAll())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemory_Contract(t *testing.T) {
	m := NewMemory()
	exercise(t, m)
	assert.Equal(t, 0, m.Len())
}

func TestRedis_Contract(t *testing.T) {
	r, _ := newRedis(t)
	exercise(t, r)
}

func TestRedis_TeacherScopeDoesNotMatchPrefixSibling(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedis(t)

	require.NoError(t, r.Set(ctx, key("t1", "teacher-1"), result("t1", "teacher-1", 1)))
	require.NoError(t, r.Set(ctx, key("t1", "teacher-10"), result("t1", "teacher-10", 1)))
	require.NoError(t, r.Set(ctx, key("t1", "we*rd"), result("t1", "we*rd", 1)))

	n, err := r.Clear(ctx, payroll.ClearTeacher("t1", "teacher-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Clear(ctx, payroll.ClearTeacher("t1", "we*"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRedis_CorruptEntryIsMiss(t *testing.T) {
	r, mr := newRedis(t)
	require.NoError(t, mr.Set(DefaultKeyPrefix+key("t1", "x").String(), "{not json"))

	_, ok, err := r.Get(context.Background(), key("t1", "x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	r := NewRedisFromClient(rdb, "test:", time.Hour, nil)
	t.Cleanup(func() { r.Close() })

	require.NoError(t, r.Set(context.Background(), key("t1", "x"), result("t1", "x", 1)))
	assert.Equal(t, time.Hour, mr.TTL("test:"+key("t1", "x").String()))

	mr.FastForward(2 * time.Hour)
	_, ok, err := r.Get(context.Background(), key("t1", "x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(RedisOptions{Addr: addr}, nil)
	assert.Error(t, err)
}
