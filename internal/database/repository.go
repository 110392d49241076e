package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"reelparty/models"
)

// Repository provides data access for groups, members, and ratings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository backed by the given connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateGroup inserts a new group.
func (r *Repository) CreateGroup(group *models.Group) error {
	policy, err := json.Marshal(group.Policy)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO groups (id, name, owner_id, policy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.OwnerID, string(policy), group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

// GetGroup returns a group by ID, or nil when it does not exist.
func (r *Repository) GetGroup(id string) (*models.Group, error) {
	row := r.db.QueryRow(`
		SELECT id, name, owner_id, policy, created_at, updated_at
		FROM groups WHERE id = ?`, id)
	return scanGroup(row)
}

// GetGroupsForAccount returns every group the account is a member of,
// newest first.
func (r *Repository) GetGroupsForAccount(accountID string) ([]models.Group, error) {
	rows, err := r.db.Query(`
		SELECT g.id, g.name, g.owner_id, g.policy, g.created_at, g.updated_at
		FROM groups g
		JOIN members m ON m.group_id = g.id
		WHERE m.account_id = ?
		ORDER BY g.created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

// UpdateGroupPolicy replaces a group's content policy.
func (r *Repository) UpdateGroupPolicy(group *models.Group) error {
	policy, err := json.Marshal(group.Policy)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE groups SET policy = ?, updated_at = ? WHERE id = ?`,
		string(policy), group.UpdatedAt, group.ID)
	if err != nil {
		return fmt.Errorf("update group policy: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteGroup removes a group; members and ratings cascade.
func (r *Repository) DeleteGroup(id string) error {
	if _, err := r.db.Exec(`DELETE FROM groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.Group, error) {
	var group models.Group
	var policy string
	err := row.Scan(&group.ID, &group.Name, &group.OwnerID, &policy, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan group: %w", err)
	}
	if err := json.Unmarshal([]byte(policy), &group.Policy); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return &group, nil
}

// AddMember inserts a membership row. Adding the same account to the same
// group twice is an error.
func (r *Repository) AddMember(member *models.Member) error {
	_, err := r.db.Exec(`
		INSERT INTO members (id, group_id, account_id, name, joined_at)
		VALUES (?, ?, ?, ?, ?)`,
		member.ID, member.GroupID, member.AccountID, member.Name, member.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// GetMember returns a member by ID, or nil when it does not exist.
func (r *Repository) GetMember(id string) (*models.Member, error) {
	row := r.db.QueryRow(`
		SELECT id, group_id, account_id, name, joined_at
		FROM members WHERE id = ?`, id)
	return scanMember(row)
}

// GetMemberByAccount returns the account's membership in a group, or nil.
func (r *Repository) GetMemberByAccount(groupID, accountID string) (*models.Member, error) {
	row := r.db.QueryRow(`
		SELECT id, group_id, account_id, name, joined_at
		FROM members WHERE group_id = ? AND account_id = ?`, groupID, accountID)
	return scanMember(row)
}

// GetMembers returns all members of a group, oldest first.
func (r *Repository) GetMembers(groupID string) ([]models.Member, error) {
	rows, err := r.db.Query(`
		SELECT id, group_id, account_id, name, joined_at
		FROM members WHERE group_id = ?
		ORDER BY joined_at ASC, id ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}

func scanMember(row rowScanner) (*models.Member, error) {
	var member models.Member
	err := row.Scan(&member.ID, &member.GroupID, &member.AccountID, &member.Name, &member.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}
	return &member, nil
}

// UpsertRating inserts a rating or, when the member re-rates the same
// title, replaces the score.
func (r *Repository) UpsertRating(rating *models.Rating) error {
	result, err := r.db.Exec(`
		INSERT INTO ratings (group_id, member_id, title_id, media_type, title_name, score, rated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, member_id, title_id)
		DO UPDATE SET score = excluded.score, rated_at = excluded.rated_at, title_name = excluded.title_name`,
		rating.GroupID, rating.MemberID, rating.TitleID, rating.MediaType,
		rating.TitleName, rating.Score, rating.RatedAt)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		rating.ID = id
	}
	return nil
}

// RatedTitleIDs returns every title ID a member has rated in a group. This
// is the authoritative dedup set for queue refills.
func (r *Repository) RatedTitleIDs(groupID, memberID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT title_id FROM ratings
		WHERE group_id = ? AND member_id = ?`, groupID, memberID)
	if err != nil {
		return nil, fmt.Errorf("query rated titles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan rated title: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetMemberRatings returns a member's ratings in a group, newest first.
func (r *Repository) GetMemberRatings(groupID, memberID string) ([]models.Rating, error) {
	rows, err := r.db.Query(`
		SELECT id, group_id, member_id, title_id, media_type, title_name, score, rated_at
		FROM ratings WHERE group_id = ? AND member_id = ?
		ORDER BY rated_at DESC, id DESC`, groupID, memberID)
	if err != nil {
		return nil, fmt.Errorf("query member ratings: %w", err)
	}
	defer rows.Close()
	return collectRatings(rows)
}

// GetGroupRatings returns every rating in a group.
func (r *Repository) GetGroupRatings(groupID string) ([]models.Rating, error) {
	rows, err := r.db.Query(`
		SELECT id, group_id, member_id, title_id, media_type, title_name, score, rated_at
		FROM ratings WHERE group_id = ?
		ORDER BY rated_at ASC, id ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group ratings: %w", err)
	}
	defer rows.Close()
	return collectRatings(rows)
}

func collectRatings(rows *sql.Rows) ([]models.Rating, error) {
	var ratings []models.Rating
	for rows.Next() {
		var rt models.Rating
		err := rows.Scan(&rt.ID, &rt.GroupID, &rt.MemberID, &rt.TitleID,
			&rt.MediaType, &rt.TitleName, &rt.Score, &rt.RatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rt)
	}
	return ratings, rows.Err()
}

// GetGroupResults aggregates a group's ratings per title, best average
// first.
func (r *Repository) GetGroupResults(groupID string) ([]models.GroupResult, error) {
	ratings, err := r.GetGroupRatings(groupID)
	if err != nil {
		return nil, err
	}

	byTitle := make(map[string]*models.GroupResult)
	totals := make(map[string]int)
	for _, rt := range ratings {
		result, ok := byTitle[rt.TitleID]
		if !ok {
			result = &models.GroupResult{
				TitleID:   rt.TitleID,
				MediaType: rt.MediaType,
				TitleName: rt.TitleName,
				ByMember:  make(map[string]int),
			}
			byTitle[rt.TitleID] = result
		}
		if rt.TitleName != "" {
			result.TitleName = rt.TitleName
		}
		result.ByMember[rt.MemberID] = rt.Score
		totals[rt.TitleID] += rt.Score
		result.Count = len(result.ByMember)
	}

	results := make([]models.GroupResult, 0, len(byTitle))
	for id, result := range byTitle {
		result.Average = float64(totals[id]) / float64(result.Count)
		results = append(results, *result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Average != results[j].Average {
			return results[i].Average > results[j].Average
		}
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].TitleID < results[j].TitleID
	})
	return results, nil
}
