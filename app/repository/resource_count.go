package repository

import "context"

// ResourceCountRepository reads the per-company resource counts the quota
// guard compares against plan limits. The engine does not own these tables;
// the surrounding CRUD layer does.
type ResourceCountRepository struct {
	db DBTX
}

func NewResourceCountRepository(db DBTX) *ResourceCountRepository {
	return &ResourceCountRepository{db: db}
}

func (r *ResourceCountRepository) CountProjects(ctx context.Context, companyID uint64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM projects WHERE company_id = ?`, companyID)
}

func (r *ResourceCountRepository) CountUsers(ctx context.Context, companyID uint64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE company_id = ?`, companyID)
}

func (r *ResourceCountRepository) count(ctx context.Context, query string, companyID uint64) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query, companyID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
