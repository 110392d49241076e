package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelparty/models"
)

// setupTestDB creates a new test database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func testGroup(id, owner string) *models.Group {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Group{
		ID:        id,
		Name:      "Movie Night",
		OwnerID:   owner,
		Policy:    models.DefaultContentPolicy(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testMember(id, groupID, accountID, name string) *models.Member {
	return &models.Member{
		ID:        id,
		GroupID:   groupID,
		AccountID: accountID,
		Name:      name,
		JoinedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestNewDB_Success(t *testing.T) {
	db := setupTestDB(t)
	require.NotNil(t, db.Repository)
	require.NoError(t, db.Connection().Ping())
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	require.NoError(t, err)
	defer db.Close()
}

func TestGroupRoundTrip(t *testing.T) {
	repo := setupTestDB(t).Repository

	group := testGroup("g1", "acc1")
	group.Policy.AllowedMovieRatings = []string{"G", "PG"}
	require.NoError(t, repo.CreateGroup(group))

	got, err := repo.GetGroup("g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Movie Night", got.Name)
	require.Equal(t, []string{"G", "PG"}, got.Policy.AllowedMovieRatings)
	require.True(t, got.Policy.PopularityFloor)
}

func TestGetGroup_NotFound(t *testing.T) {
	repo := setupTestDB(t).Repository

	got, err := repo.GetGroup("missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetGroupsForAccount(t *testing.T) {
	repo := setupTestDB(t).Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))
	require.NoError(t, repo.CreateGroup(testGroup("g2", "acc2")))
	require.NoError(t, repo.CreateGroup(testGroup("g3", "acc3")))

	require.NoError(t, repo.AddMember(testMember("m1", "g1", "acc1", "Alex")))
	require.NoError(t, repo.AddMember(testMember("m2", "g2", "acc1", "Alex")))
	require.NoError(t, repo.AddMember(testMember("m3", "g3", "acc3", "Sam")))

	groups, err := repo.GetGroupsForAccount("acc1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
}

func TestUpdateGroupPolicy(t *testing.T) {
	repo := setupTestDB(t).Repository

	group := testGroup("g1", "acc1")
	require.NoError(t, repo.CreateGroup(group))

	group.Policy.MediaScope = models.MediaScopeSeries
	group.Policy.AllowedTVRatings = []string{"TV-PG"}
	group.UpdatedAt = group.UpdatedAt.Add(time.Minute)
	require.NoError(t, repo.UpdateGroupPolicy(group))

	got, err := repo.GetGroup("g1")
	require.NoError(t, err)
	require.Equal(t, models.MediaScopeSeries, got.Policy.MediaScope)
	require.Equal(t, []string{"TV-PG"}, got.Policy.AllowedTVRatings)
}

func TestUpdateGroupPolicy_MissingGroup(t *testing.T) {
	repo := setupTestDB(t).Repository

	group := testGroup("missing", "acc1")
	require.Error(t, repo.UpdateGroupPolicy(group))
}

func TestAddMember_DuplicateAccountRejected(t *testing.T) {
	repo := setupTestDB(t).Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))
	require.NoError(t, repo.AddMember(testMember("m1", "g1", "acc1", "Alex")))

	err := repo.AddMember(testMember("m2", "g1", "acc1", "Alex Again"))
	require.Error(t, err, "second membership for the same account must fail")
}

func TestGetMemberByAccount(t *testing.T) {
	repo := setupTestDB(t).Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))
	require.NoError(t, repo.AddMember(testMember("m1", "g1", "acc1", "Alex")))

	got, err := repo.GetMemberByAccount("g1", "acc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "m1", got.ID)

	got, err = repo.GetMemberByAccount("g1", "stranger")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetMembersOrderedByJoin(t *testing.T) {
	repo := setupTestDB(t).Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))

	first := testMember("m1", "g1", "acc1", "Alex")
	second := testMember("m2", "g1", "acc2", "Sam")
	second.JoinedAt = first.JoinedAt.Add(time.Hour)
	require.NoError(t, repo.AddMember(second))
	require.NoError(t, repo.AddMember(first))

	members, err := repo.GetMembers("g1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "m1", members[0].ID)
	require.Equal(t, "m2", members[1].ID)
}

func TestUpsertRating_ReplacesScore(t *testing.T) {
	repo := setupTestDB(t).Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))
	require.NoError(t, repo.AddMember(testMember("m1", "g1", "acc1", "Alex")))

	rating := &models.Rating{
		GroupID:   "g1",
		MemberID:  "m1",
		TitleID:   "tmdb:movie:550",
		MediaType: models.MediaTypeMovie,
		TitleName: "Fight Club",
		Score:     7,
		RatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.UpsertRating(rating))
	require.NotZero(t, rating.ID)

	rating.Score = 9
	rating.RatedAt = rating.RatedAt.Add(time.Minute)
	require.NoError(t, repo.UpsertRating(rating))

	ratings, err := repo.GetMemberRatings("g1", "m1")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	require.Equal(t, 9, ratings[0].Score)
}

func TestRatedTitleIDs(t *testing.T) {
	repo := setupTestDB(t).Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))
	require.NoError(t, repo.AddMember(testMember("m1", "g1", "acc1", "Alex")))
	require.NoError(t, repo.AddMember(testMember("m2", "g1", "acc2", "Sam")))

	now := time.Now().UTC()
	for i, titleID := range []string{"tmdb:movie:1", "tmdb:movie:2"} {
		require.NoError(t, repo.UpsertRating(&models.Rating{
			GroupID: "g1", MemberID: "m1", TitleID: titleID,
			MediaType: models.MediaTypeMovie, Score: 5 + i, RatedAt: now,
		}))
	}
	// Another member's rating must not leak into m1's set.
	require.NoError(t, repo.UpsertRating(&models.Rating{
		GroupID: "g1", MemberID: "m2", TitleID: "tmdb:movie:3",
		MediaType: models.MediaTypeMovie, Score: 8, RatedAt: now,
	}))

	ids, err := repo.RatedTitleIDs("g1", "m1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"tmdb:movie:1", "tmdb:movie:2"}, ids)
}

func TestGetGroupResults(t *testing.T) {
	repo := setupTestDB(t).Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))
	require.NoError(t, repo.AddMember(testMember("m1", "g1", "acc1", "Alex")))
	require.NoError(t, repo.AddMember(testMember("m2", "g1", "acc2", "Sam")))

	now := time.Now().UTC()
	seed := []models.Rating{
		{GroupID: "g1", MemberID: "m1", TitleID: "tmdb:movie:1", MediaType: "movie", TitleName: "First", Score: 8, RatedAt: now},
		{GroupID: "g1", MemberID: "m2", TitleID: "tmdb:movie:1", MediaType: "movie", TitleName: "First", Score: 6, RatedAt: now},
		{GroupID: "g1", MemberID: "m1", TitleID: "tmdb:movie:2", MediaType: "movie", TitleName: "Second", Score: 4, RatedAt: now},
	}
	for i := range seed {
		require.NoError(t, repo.UpsertRating(&seed[i]))
	}

	results, err := repo.GetGroupResults("g1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "tmdb:movie:1", results[0].TitleID)
	require.InDelta(t, 7.0, results[0].Average, 0.001)
	require.Equal(t, 2, results[0].Count)
	require.Equal(t, map[string]int{"m1": 8, "m2": 6}, results[0].ByMember)

	require.Equal(t, "tmdb:movie:2", results[1].TitleID)
	require.InDelta(t, 4.0, results[1].Average, 0.001)
}

func TestDeleteGroupCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Repository

	require.NoError(t, repo.CreateGroup(testGroup("g1", "acc1")))
	require.NoError(t, repo.AddMember(testMember("m1", "g1", "acc1", "Alex")))
	require.NoError(t, repo.UpsertRating(&models.Rating{
		GroupID: "g1", MemberID: "m1", TitleID: "tmdb:movie:1",
		MediaType: "movie", Score: 5, RatedAt: time.Now().UTC(),
	}))

	require.NoError(t, repo.DeleteGroup("g1"))

	member, err := repo.GetMember("m1")
	require.NoError(t, err)
	require.Nil(t, member)

	ids, err := repo.RatedTitleIDs("g1", "m1")
	require.NoError(t, err)
	require.Empty(t, ids)
}
