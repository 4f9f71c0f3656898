package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notitia/internal/queryir"
	"github.com/roach88/notitia/internal/store"
	"github.com/roach88/notitia/internal/testutil"
)

// consistencySpecs are subscriptions whose cache must always equal a
// fresh query. Capacity-bound modes are excluded: their at-capacity
// behavior is an approximation.
func consistencySpecs() []queryir.QuerySpec {
	return []queryir.QuerySpec{
		queryir.Select("users", "id").All(),
		adults().All(),
		queryir.Select("users", "name", "age").Where(queryir.Lt("age", 30)).OrderByDesc("age").All(),
		queryir.Select("users", "id").Where(queryir.AnyOf(queryir.OneOf("name", "n1!", "n2"), queryir.Gte("age", 90))).OrderBy("name").All(),
		queryir.Select("users", "email").Where(queryir.Not{Inner: queryir.Eq("age", 50)}).All(),
	}
}

// randomMutation draws a mutation on ids 1..20.
func randomMutation(r *rand.Rand) queryir.MutationSpec {
	id := r.Int64N(20) + 1
	var age any = r.Int64N(100)
	if r.IntN(8) == 0 {
		age = nil
	}
	switch r.IntN(6) {
	case 0, 1:
		return queryir.Insert("users", user(id, fmt.Sprintf("n%d", r.IntN(4)), age))
	case 2:
		return queryir.Update("users").Set("age", age).Where(queryir.Eq("id", id)).Build()
	case 3:
		return queryir.Update("users").
			SetExpr("name", queryir.Cat(queryir.Col("name"), queryir.Lit("!"))).
			Where(queryir.Lt("age", r.Int64N(100))).
			Build()
	case 4:
		return queryir.Delete("users", queryir.Eq("id", id))
	default:
		return queryir.Update("users").Set("age", age).Where(queryir.Eq("name", "n3")).Build()
	}
}

func TestConsistency_RandomMutations(t *testing.T) {
	testCases := []struct {
		name string
		wrap func(*testutil.FakeAdapter) store.Adapter
	}{
		{"merged rows", func(f *testutil.FakeAdapter) store.Adapter { return f }},
		{"keys only", func(f *testutil.FakeAdapter) store.Adapter { return keysOnlyAdapter{f} }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			schema := testSchema()
			fake := testutil.NewFakeAdapter(schema)
			db := openTestDB(t, tc.wrap(fake), schema)

			var subs []*Subscription
			for _, q := range consistencySpecs() {
				subs = append(subs, mustSubscribe(t, db, q))
			}

			r := rand.New(rand.NewPCG(1, 2))
			for i := 0; i < 400; i++ {
				m := randomMutation(r)
				if _, err := db.Mutate(context.Background(), m); err != nil {
					require.True(t, IsMutationConflict(err), "step %d: %v", i, err)
				}
				if i%50 == 0 {
					for _, sub := range subs {
						assertConsistent(t, db, sub)
					}
				}
			}
			for _, sub := range subs {
				assertConsistent(t, db, sub)
			}
		})
	}
}

func TestConsistency_ConcurrentWritersAndSubscribers(t *testing.T) {
	db, _ := newTestDB(t, WithMergeWorkers(4))
	ctx := context.Background()

	var (
		mu   sync.Mutex
		subs []*Subscription
		wg   sync.WaitGroup
	)
	addSub := func(q queryir.QuerySpec) {
		sub, err := db.Subscribe(ctx, q)
		if assert.NoError(t, err) {
			mu.Lock()
			subs = append(subs, sub)
			mu.Unlock()
		}
	}
	for _, q := range consistencySpecs() {
		addSub(q)
	}

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(w), 7))
			base := int64(w) * 100
			for i := 0; i < 100; i++ {
				id := base + r.Int64N(10) + 1
				var m queryir.MutationSpec
				switch r.IntN(3) {
				case 0:
					m = queryir.Insert("users", user(id, fmt.Sprintf("n%d", r.IntN(4)), r.Int64N(100)))
				case 1:
					m = queryir.Update("users").Set("age", r.Int64N(100)).Where(queryir.Eq("id", id)).Build()
				default:
					m = queryir.Delete("users", queryir.Eq("id", id))
				}
				if _, err := db.Mutate(ctx, m); err != nil {
					assert.True(t, IsMutationConflict(err), "%v", err)
				}
			}
		}()
	}

	// Subscribe while writers run.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, q := range consistencySpecs() {
			addSub(q)
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, sub := range subs {
		assertConsistent(t, db, sub)
	}
}
