package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, m Mirror, names ...string) {
	t.Helper()
	for i, n := range names {
		require.NoError(t, m.UpsertUser(context.Background(), int64(i+1), n))
	}
}

func TestMemory_FriendshipIsSymmetric(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedUsers(t, m, "alice", "bob")

	require.NoError(t, m.AddFriend(ctx, 1, 2))
	require.NoError(t, m.AddFriend(ctx, 1, 2))

	a, err := m.ListFriends(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []Friend{{UserID: 2, Username: "bob"}}, a)

	b, err := m.ListFriends(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []Friend{{UserID: 1, Username: "alice"}}, b)
}

func TestMemory_RecommendUsers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedUsers(t, m, "me", "u2", "u3", "u4", "u5")

	sleep := GoalRef{NodeID: CatalogNodeID("improve-sleep"), Title: "Improve sleep", Catalog: true}
	read := GoalRef{NodeID: CatalogNodeID("read-more"), Title: "Read more", Catalog: true}
	for _, u := range []int64{1, 2, 3, 4, 5} {
		require.NoError(t, m.LinkUserGoal(ctx, u, sleep))
	}
	require.NoError(t, m.LinkUserGoal(ctx, 1, read))
	require.NoError(t, m.LinkUserGoal(ctx, 3, read))
	require.NoError(t, m.AddFriend(ctx, 1, 4))

	recs, err := m.RecommendUsers(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, Recommendation{UserID: 3, Username: "u3", SharedGoals: 2, Score: 2}, recs[0])
	assert.Equal(t, int64(2), recs[1].UserID, "ties break by user id")
	assert.Equal(t, int64(5), recs[2].UserID)
	for _, r := range recs {
		assert.NotEqual(t, int64(1), r.UserID, "self excluded")
		assert.NotEqual(t, int64(4), r.UserID, "friends excluded")
		assert.Equal(t, r.SharedGoals+r.SharedHabits, r.Score)
	}

	recs, err = m.RecommendUsers(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMemory_RecommendUsers_UnknownUserAndNoOverlap(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	recs, err := m.RecommendUsers(ctx, 99, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)

	seedUsers(t, m, "a", "b")
	recs, err = m.RecommendUsers(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, recs, "zero score candidates are dropped")
}

func TestMemory_CatalogFlagNeverDowngraded(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.EnsureGoalCatalog(ctx, []CatalogGoal{
		{ID: "improve-sleep", Title: "Improve sleep"},
		{ID: "lose-weight", Title: "Lose weight"},
	}))

	require.NoError(t, m.LinkUserGoal(ctx, 1, GoalRef{NodeID: CatalogNodeID("improve-sleep"), Title: "renamed", Catalog: false}))

	goals, err := m.ListGoalCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "improve-sleep", goals[0].ID)
	assert.Equal(t, "Improve sleep", goals[0].Title)
	assert.Equal(t, "lose-weight", goals[1].ID)
}

func TestMemory_UnlinkAndClear(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedUsers(t, m, "a", "b")

	g := GoalRef{NodeID: GoalNodeID(7), Title: "Run a marathon"}
	require.NoError(t, m.LinkUserGoal(ctx, 1, g))
	require.NoError(t, m.LinkUserGoal(ctx, 2, g))
	require.NoError(t, m.LinkUserHabit(ctx, 1, 3, "Run"))
	require.NoError(t, m.LinkUserHabit(ctx, 2, 3, "Run"))

	recs, _ := m.RecommendUsers(ctx, 1, 10)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Score)

	require.NoError(t, m.UnlinkUserGoal(ctx, 1, g.NodeID))
	require.NoError(t, m.UnlinkUserGoal(ctx, 1, g.NodeID), "unlinking twice is a no-op")
	recs, _ = m.RecommendUsers(ctx, 1, 10)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Score)

	require.NoError(t, m.UnlinkUserHabit(ctx, 1, 3))
	require.NoError(t, m.ClearGoals(ctx))
	recs, _ = m.RecommendUsers(ctx, 1, 10)
	assert.Empty(t, recs)
	goals, _ := m.ListGoalCatalog(ctx)
	assert.Empty(t, goals)
}

func TestRankAndClampLimit(t *testing.T) {
	assert.Equal(t, 1, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(-5))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxRecommendLimit, ClampLimit(1000))

	got := Rank([]Recommendation{
		{UserID: 9, SharedGoals: 1},
		{UserID: 3, SharedHabits: 1},
		{UserID: 5},
		{UserID: 2, SharedGoals: 1, SharedHabits: 2},
	}, 10)
	ids := make([]int64, len(got))
	for i, r := range got {
		ids[i] = r.UserID
	}
	assert.Equal(t, []int64{2, 3, 9}, ids)
	assert.Equal(t, 3, got[0].Score)
}

func TestNodeIDs(t *testing.T) {
	assert.Equal(t, "catalog:lose-weight", CatalogNodeID("lose-weight"))
	assert.Equal(t, "goal:42", GoalNodeID(42))
}
